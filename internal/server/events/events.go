// Package events names the internal bus topics shared by the content store,
// the session registry, the payment gate and the websocket hub.
package events

// Bus topics. Mutations publish after persisting, never before.
const (
	TopicPostUpdated = "post:updated"
	TopicInvoicePaid = "invoice:paid"
)

// InvoicePaid is published whenever any live session's settlement
// subscription reports a paid invoice.
type InvoicePaid struct {
	Hash   string `json:"hash"`
	Amount int64  `json:"amount"`
	Pubkey string `json:"pubkey"`
}
