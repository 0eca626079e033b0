// Package lightning wraps the subset of the LND RPC surface boltboard needs
// behind a small interface, so the session registry, payment gate and
// authorship verifier can be exercised against fakes.
package lightning

import "context"

// Info describes the remote node's identity.
type Info struct {
	Alias   string
	Pubkey  string
	Balance int64
}

// Invoice is a payment request minted by (or looked up on) a node. Hash is
// the base64-encoded payment hash and is the only token correlating the
// HTTP flow with the asynchronous settlement flow.
type Invoice struct {
	Hash           string
	PaymentRequest string
	AmtPaid        int64
	Settled        bool
}

// Client is a live connection to a remote Lightning node.
type Client interface {
	// GetInfo returns the node identity, including its pubkey.
	GetInfo(ctx context.Context) (*Info, error)

	// ChannelBalance returns the node's local channel balance in sats.
	ChannelBalance(ctx context.Context) (int64, error)

	// SignMessage signs msg with the node's identity key.
	SignMessage(ctx context.Context, msg []byte) (string, error)

	// VerifyMessage checks signature over msg and reports validity along
	// with the pubkey that produced the signature.
	VerifyMessage(ctx context.Context, msg []byte, signature string) (valid bool, pubkey string, err error)

	// AddInvoice mints an invoice for the given amount in sats.
	AddInvoice(ctx context.Context, amount int64, memo string) (*Invoice, error)

	// LookupInvoice resolves an invoice by its base64 payment hash.
	LookupInvoice(ctx context.Context, hash string) (*Invoice, error)

	// SubscribeInvoices streams invoice updates until ctx is cancelled or
	// the connection drops, at which point the channel is closed.
	SubscribeInvoices(ctx context.Context) (<-chan *Invoice, error)

	// Close tears down the underlying connection.
	Close() error
}
