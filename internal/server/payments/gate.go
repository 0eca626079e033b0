// Package payments turns settled invoices into votes. An upvote attempt
// flows through three steps keyed by the invoice's payment hash: an invoice
// is minted on the post owner's node, settlement is detected by explicit
// lookup or by the owner node's settlement stream (whichever reports first),
// and the settled hash is consumed for exactly one vote.
package payments

import (
	"context"
	"fmt"
	"sync"

	"boltboard/internal/common"
	"boltboard/internal/logging"
	"boltboard/internal/server/events"
	"boltboard/internal/server/nodes"
	"boltboard/internal/server/posts"

	"github.com/asaskevich/EventBus"
)

// InvoiceAmount is the fixed price of an upvote, in sats.
const InvoiceAmount = 100

// Invoice is what the client needs to pay: the request string to hand to a
// wallet and the hash to present back once paid.
type Invoice struct {
	PaymentRequest string `json:"payreq"`
	Hash           string `json:"hash"`
	Amount         int64  `json:"amount"`
}

type Gate struct {
	nodes  *nodes.Manager
	posts  *posts.Service
	logger logging.Logger

	mu sync.Mutex
	// pending correlates hashes of invoices we minted with the post they
	// would upvote; it only feeds the push path and is never persisted.
	pending map[string]int64
	// consumed holds hashes that have already produced a vote, so a
	// duplicate settlement signal is a no-op rather than a double vote.
	consumed map[string]struct{}
}

func NewGate(bus EventBus.Bus, nodeManager *nodes.Manager, postService *posts.Service, logger logging.Logger) (*Gate, error) {
	g := &Gate{
		nodes:    nodeManager,
		posts:    postService,
		logger:   logger.With("component", "payments"),
		pending:  make(map[string]int64),
		consumed: make(map[string]struct{}),
	}
	// The push handler must run outside the bus's own Publish: consuming a
	// settlement re-publishes a post-updated event on the same bus, and the
	// bus mutex is not reentrant. The consumed-hash guard in consume keeps
	// concurrent deliveries to a single vote.
	if err := bus.SubscribeAsync(events.TopicInvoicePaid, g.onInvoicePaid, false); err != nil {
		return nil, fmt.Errorf("subscribing to settlement events: %w", err)
	}
	return g, nil
}

// RequestInvoice mints an invoice for one upvote of the given post, routed
// through the post owner's node so payment is a value transfer to the
// author. The returned hash is the caller's only correlation token.
func (g *Gate) RequestInvoice(ctx context.Context, postID int64) (*Invoice, error) {
	post, err := g.posts.Get(postID)
	if err != nil {
		return nil, err
	}

	owner, err := g.nodes.ByPubkey(post.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("post owner is not connected: %w", err)
	}

	memo := fmt.Sprintf("upvote post %d: %s", post.ID, post.Title)
	inv, err := owner.Conn().AddInvoice(ctx, InvoiceAmount, memo)
	if err != nil {
		return nil, fmt.Errorf("creating invoice: %w", err)
	}

	g.mu.Lock()
	g.pending[inv.Hash] = post.ID
	g.mu.Unlock()

	return &Invoice{PaymentRequest: inv.PaymentRequest, Hash: inv.Hash, Amount: InvoiceAmount}, nil
}

// SettleByHash is the poll path: the holder of a hash asserts it has been
// paid. The owner node is asked directly; an unsettled invoice fails with
// ErrPaymentNotSettled and can be retried. A hash that already voted is a
// no-op returning the current post.
func (g *Gate) SettleByHash(ctx context.Context, postID int64, hash string) (*posts.Post, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: hash is required", common.ErrValidation)
	}

	post, err := g.posts.Get(postID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	_, done := g.consumed[hash]
	g.mu.Unlock()
	if done {
		return post, nil
	}

	owner, err := g.nodes.ByPubkey(post.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("post owner is not connected: %w", err)
	}

	inv, err := owner.Conn().LookupInvoice(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("looking up invoice: %w", err)
	}
	if !inv.Settled {
		return nil, common.ErrPaymentNotSettled
	}

	return g.consume(hash, postID)
}

// onInvoicePaid is the push path, fed by every live session's settlement
// subscription. Settlements for hashes we never issued are dropped.
func (g *Gate) onInvoicePaid(ev events.InvoicePaid) {
	g.mu.Lock()
	postID, ok := g.pending[ev.Hash]
	g.mu.Unlock()
	if !ok {
		return
	}

	if _, err := g.consume(ev.Hash, postID); err != nil {
		g.logger.Error(context.Background(), "recording pushed settlement failed",
			"hash", ev.Hash, "error", err.Error())
	}
}

// consume marks the hash voted and applies the vote. The consumed check and
// set happen under one lock so racing poll/push signals produce one vote.
func (g *Gate) consume(hash string, postID int64) (*posts.Post, error) {
	g.mu.Lock()
	if _, done := g.consumed[hash]; done {
		g.mu.Unlock()
		return g.posts.Get(postID)
	}
	g.consumed[hash] = struct{}{}
	delete(g.pending, hash)
	g.mu.Unlock()

	return g.posts.Upvote(postID)
}
