package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"boltboard/internal/common"
	"boltboard/internal/lightning"
	"boltboard/internal/logging"
	"boltboard/internal/server/events"
	"boltboard/internal/server/nodes"
	"boltboard/internal/server/posts"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeConn struct {
	pubkey string

	nextHash   string
	addErr     error
	settled    map[string]bool
	lookupErr  error
	addedMemos []string
}

func (f *fakeConn) GetInfo(ctx context.Context) (*lightning.Info, error) {
	return &lightning.Info{Alias: "alice", Pubkey: f.pubkey}, nil
}

func (f *fakeConn) ChannelBalance(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeConn) SignMessage(ctx context.Context, msg []byte) (string, error) {
	return "sig", nil
}

func (f *fakeConn) VerifyMessage(ctx context.Context, msg []byte, signature string) (bool, string, error) {
	return true, f.pubkey, nil
}

func (f *fakeConn) AddInvoice(ctx context.Context, amount int64, memo string) (*lightning.Invoice, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.addedMemos = append(f.addedMemos, memo)
	hash := f.nextHash
	if hash == "" {
		hash = "aGFzaA=="
	}
	return &lightning.Invoice{Hash: hash, PaymentRequest: "lnbc1invoice"}, nil
}

func (f *fakeConn) LookupInvoice(ctx context.Context, hash string) (*lightning.Invoice, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return &lightning.Invoice{Hash: hash, Settled: f.settled[hash], AmtPaid: 100}, nil
}

func (f *fakeConn) SubscribeInvoices(ctx context.Context) (<-chan *lightning.Invoice, error) {
	closed := make(chan *lightning.Invoice)
	close(closed)
	return closed, nil
}

func (f *fakeConn) Close() error { return nil }

type memRepo struct{ doc *posts.Document }

func (m *memRepo) Load() (*posts.Document, error) {
	if m.doc == nil {
		return &posts.Document{}, nil
	}
	return m.doc, nil
}

func (m *memRepo) Save(doc *posts.Document) error {
	m.doc = doc
	return nil
}

type fixture struct {
	gate  *Gate
	posts *posts.Service
	bus   EventBus.Bus
	conn  *fakeConn
	post  *posts.Post
}

// setup connects one fake node and creates one post owned by it.
func setup(t *testing.T) *fixture {
	t.Helper()

	bus := EventBus.New()
	conn := &fakeConn{pubkey: "02ab", settled: make(map[string]bool)}

	dial := func(host, certHex, macaroonHex string) (lightning.Client, error) {
		return conn, nil
	}
	manager := nodes.NewManager(dial, bus, logging.NopLogger{})
	_, err := manager.Connect(context.Background(), "10.0.0.1:10001", "cert", "mac", "")
	require.NoError(t, err)

	postService := posts.NewService(&memRepo{}, bus, logging.NopLogger{})
	require.NoError(t, postService.Restore(context.Background()))

	gate, err := NewGate(bus, manager, postService, logging.NopLogger{})
	require.NoError(t, err)

	post, err := postService.Create("alice", "Hello", "World", "sig", "02ab")
	require.NoError(t, err)

	return &fixture{gate: gate, posts: postService, bus: bus, conn: conn, post: post}
}

func (f *fixture) votes(t *testing.T) int64 {
	t.Helper()
	p, err := f.posts.Get(f.post.ID)
	require.NoError(t, err)
	return p.Votes
}

// ---- tests ----

func TestRequestInvoice(t *testing.T) {
	f := setup(t)

	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	assert.Equal(t, "aGFzaA==", inv.Hash)
	assert.Equal(t, "lnbc1invoice", inv.PaymentRequest)
	assert.Equal(t, int64(InvoiceAmount), inv.Amount)
}

func TestRequestInvoice_UnknownPost(t *testing.T) {
	f := setup(t)
	_, err := f.gate.RequestInvoice(context.Background(), 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRequestInvoice_OwnerNotConnected(t *testing.T) {
	f := setup(t)
	orphan, err := f.posts.Create("mallory", "t", "c", "sig", "03cd")
	require.NoError(t, err)

	_, err = f.gate.RequestInvoice(context.Background(), orphan.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSettleByHash_MissingHash(t *testing.T) {
	f := setup(t)
	_, err := f.gate.SettleByHash(context.Background(), f.post.ID, "")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, int64(0), f.votes(t))
}

func TestSettleByHash_Unsettled(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	_, err = f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	assert.ErrorIs(t, err, common.ErrPaymentNotSettled)
	assert.Equal(t, int64(0), f.votes(t))
}

func TestSettleByHash_SettledVotesOnce(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	f.conn.settled[inv.Hash] = true

	p, err := f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Votes)

	// Re-presenting a consumed hash is a no-op, not an error.
	p, err = f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Votes)
	assert.Equal(t, int64(1), f.votes(t))
}

func TestSettleByHash_RetryAfterSettlement(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	_, err = f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	require.ErrorIs(t, err, common.ErrPaymentNotSettled)

	f.conn.settled[inv.Hash] = true
	p, err := f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Votes)
}

func TestPushSettlement_VotesOnce(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	ev := events.InvoicePaid{Hash: inv.Hash, Amount: 100, Pubkey: "02ab"}
	f.bus.Publish(events.TopicInvoicePaid, ev)
	f.bus.WaitAsync()
	assert.Equal(t, int64(1), f.votes(t))

	// A duplicate settlement signal must not double-vote.
	f.bus.Publish(events.TopicInvoicePaid, ev)
	f.bus.WaitAsync()
	assert.Equal(t, int64(1), f.votes(t))
}

// A pushed settlement triggers an upvote, which publishes post-updated on
// the same bus the settlement arrived on. That follow-up event has to reach
// subscribers instead of wedging the bus.
func TestPushSettlement_DeliversResultingPostUpdate(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	updated := make(chan *posts.Post, 1)
	require.NoError(t, f.bus.Subscribe(events.TopicPostUpdated, func(p *posts.Post) {
		updated <- p
	}))

	f.bus.Publish(events.TopicInvoicePaid, events.InvoicePaid{Hash: inv.Hash, Amount: 100, Pubkey: "02ab"})

	select {
	case p := <-updated:
		assert.Equal(t, int64(1), p.Votes)
	case <-time.After(2 * time.Second):
		t.Fatal("post update never delivered after pushed settlement")
	}

	f.bus.WaitAsync()
	assert.Equal(t, int64(1), f.votes(t))
}

func TestPushSettlement_UnknownHashIsNoop(t *testing.T) {
	f := setup(t)

	f.bus.Publish(events.TopicInvoicePaid, events.InvoicePaid{Hash: "c3RyYXk=", Amount: 1, Pubkey: "02ab"})
	f.bus.WaitAsync()
	assert.Equal(t, int64(0), f.votes(t))
}

func TestPollAndPush_SameHashVotesOnce(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	f.conn.settled[inv.Hash] = true

	_, err = f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	require.NoError(t, err)
	f.bus.Publish(events.TopicInvoicePaid, events.InvoicePaid{Hash: inv.Hash, Amount: 100, Pubkey: "02ab"})
	f.bus.WaitAsync()

	assert.Equal(t, int64(1), f.votes(t))
}

func TestSettleByHash_LookupError(t *testing.T) {
	f := setup(t)
	inv, err := f.gate.RequestInvoice(context.Background(), f.post.ID)
	require.NoError(t, err)

	f.conn.lookupErr = errors.New("unable to locate invoice")
	_, err = f.gate.SettleByHash(context.Background(), f.post.ID, inv.Hash)
	assert.Error(t, err)
	assert.Equal(t, int64(0), f.votes(t))
}
