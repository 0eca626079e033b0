// Package nodes is the session registry: it owns per-token connections to
// remote Lightning nodes, runs the connection handshake, keeps one
// settlement subscription per session and rebuilds sessions on restart.
package nodes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"boltboard/internal/common"
	"boltboard/internal/lightning"
	"boltboard/internal/logging"
	"boltboard/internal/server/events"
	"boltboard/internal/server/posts"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// handshakeMsg is signed and verified during the connect handshake to prove
// the macaroon carries signing permissions.
const handshakeMsg = "authorization test"

// probeInvoiceAmount is the value of the throwaway invoice minted to prove
// invoicing permissions.
const probeInvoiceAmount = 1

// DialFunc opens a connection to a remote node. Swapped for a fake in tests.
type DialFunc func(host, certHex, macaroonHex string) (lightning.Client, error)

// Session is a validated, live connection to a node. The token is the sole
// credential authorizing all later requests.
type Session struct {
	Token  string
	Host   string
	Pubkey string
	conn   lightning.Client
}

// Conn returns the session's live connection handle.
func (s *Session) Conn() lightning.Client { return s.conn }

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	dial   DialFunc
	bus    EventBus.Bus
	logger logging.Logger
}

func NewManager(dial DialFunc, bus EventBus.Bus, logger logging.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		dial:     dial,
		bus:      bus,
		logger:   logger.With("component", "nodes"),
	}
}

// Connect validates a node connection with a fixed, ordered probe sequence
// and caches the session keyed by token. prevToken is only supplied on the
// startup reconnect path; otherwise a fresh token is minted. The probes are
// all-or-nothing: on any failure the speculative session is removed before
// the error is returned, so a failed connect never leaves a usable token.
func (m *Manager) Connect(ctx context.Context, host, certHex, macaroonHex, prevToken string) (*Session, error) {
	token := prevToken
	if token == "" {
		token = newToken()
	}

	conn, err := m.dial(host, certHex, macaroonHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrHandshake, err)
	}

	session := &Session{Token: token, Host: host, conn: conn}

	// Cache speculatively so the handshake mirrors the live-session flow;
	// the error path below removes it again.
	m.mu.Lock()
	m.sessions[token] = session
	m.mu.Unlock()

	pubkey, err := m.handshake(ctx, conn)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrHandshake, err)
	}
	m.mu.Lock()
	session.Pubkey = pubkey
	m.mu.Unlock()

	go m.listenForPayments(session)

	m.logger.Info(ctx, "node connected", "host", host, "pubkey", pubkey)
	return session, nil
}

// handshake runs the six capability probes in order and returns the node's
// pubkey. The conjunction of all probes is the authorization contract.
func (m *Manager) handshake(ctx context.Context, conn lightning.Client) (string, error) {
	info, err := conn.GetInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("get info: %w", err)
	}

	if _, err := conn.ChannelBalance(ctx); err != nil {
		return "", fmt.Errorf("channel balance: %w", err)
	}

	msg := []byte(handshakeMsg)
	sig, err := conn.SignMessage(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	if _, _, err := conn.VerifyMessage(ctx, msg, sig); err != nil {
		return "", fmt.Errorf("verify message: %w", err)
	}

	inv, err := conn.AddInvoice(ctx, probeInvoiceAmount, "connection probe")
	if err != nil {
		return "", fmt.Errorf("add invoice: %w", err)
	}

	if _, err := conn.LookupInvoice(ctx, inv.Hash); err != nil {
		return "", fmt.Errorf("lookup invoice: %w", err)
	}

	return info.Pubkey, nil
}

// Session resolves a token to its live session. This is the only
// authorization check in the system.
func (m *Manager) Session(token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, common.ErrUnauthenticated
	}
	return s, nil
}

// Conn resolves a token straight to its connection handle.
func (m *Manager) Conn(token string) (lightning.Client, error) {
	s, err := m.Session(token)
	if err != nil {
		return nil, err
	}
	return s.conn, nil
}

// ByPubkey finds the live session for the node holding pubkey. Used to
// route invoices through a post owner's node.
func (m *Manager) ByPubkey(pubkey string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.Pubkey == pubkey {
			return s, nil
		}
	}
	return nil, fmt.Errorf("node with pubkey %s: %w", pubkey, common.ErrNotFound)
}

// ReconnectAll replays Connect for every persisted node entry with its
// saved token. Failures are logged and that node is left out of the live
// session set; one bad node never blocks the others.
func (m *Manager) ReconnectAll(ctx context.Context, entries []*posts.NodeEntry) {
	for _, e := range entries {
		m.logger.Info(ctx, "reconnecting to node", "host", e.Host, "token", e.Token)
		if _, err := m.Connect(ctx, e.Host, e.Cert, e.Macaroon, e.Token); err != nil {
			m.logger.Error(ctx, "node reconnect failed", "host", e.Host, "error", err.Error())
		}
	}
}

// listenForPayments pumps the session's settlement subscription onto the
// bus. It runs for the lifetime of the connection.
func (m *Manager) listenForPayments(s *Session) {
	ctx := context.Background()

	updates, err := s.conn.SubscribeInvoices(ctx)
	if err != nil {
		m.logger.Error(ctx, "invoice subscription failed", "host", s.Host, "error", err.Error())
		return
	}

	for inv := range updates {
		if !inv.Settled {
			continue
		}
		m.bus.Publish(events.TopicInvoicePaid, events.InvoicePaid{
			Hash:   inv.Hash,
			Amount: inv.AmtPaid,
			Pubkey: s.Pubkey,
		})
	}

	m.logger.Warn(ctx, "invoice subscription closed", "host", s.Host)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
