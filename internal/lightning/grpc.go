package lightning

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// GRPCClient talks to an LND node over gRPC using its TLS certificate and a
// macaroon for authorization. Both are supplied hex-encoded, as they arrive
// from the connect request.
type GRPCClient struct {
	conn *grpc.ClientConn
	ln   lnrpc.LightningClient
}

// macaroonCredential attaches the hex-encoded macaroon to every RPC.
type macaroonCredential struct {
	macaroonHex string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroonHex}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// Dial connects to the node at host. certHex is the hex encoding of the
// node's PEM TLS certificate, macaroonHex the hex encoding of an admin (or
// suitably scoped) macaroon. Dialing is lazy; the first probe surfaces
// connectivity errors.
func Dial(host, certHex, macaroonHex string) (*GRPCClient, error) {
	certPEM, err := hex.DecodeString(certHex)
	if err != nil {
		return nil, fmt.Errorf("decoding tls cert: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("tls cert is not valid PEM")
	}

	conn, err := grpc.NewClient(host,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{RootCAs: pool})),
		grpc.WithPerRPCCredentials(macaroonCredential{macaroonHex: macaroonHex}),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", host, err)
	}

	return &GRPCClient{conn: conn, ln: lnrpc.NewLightningClient(conn)}, nil
}

func (c *GRPCClient) GetInfo(ctx context.Context) (*Info, error) {
	resp, err := c.ln.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, err
	}
	return &Info{Alias: resp.Alias, Pubkey: resp.IdentityPubkey}, nil
}

func (c *GRPCClient) ChannelBalance(ctx context.Context) (int64, error) {
	resp, err := c.ln.ChannelBalance(ctx, &lnrpc.ChannelBalanceRequest{})
	if err != nil {
		return 0, err
	}
	return int64(resp.GetLocalBalance().GetSat()), nil
}

func (c *GRPCClient) SignMessage(ctx context.Context, msg []byte) (string, error) {
	resp, err := c.ln.SignMessage(ctx, &lnrpc.SignMessageRequest{Msg: msg})
	if err != nil {
		return "", err
	}
	return resp.Signature, nil
}

func (c *GRPCClient) VerifyMessage(ctx context.Context, msg []byte, signature string) (bool, string, error) {
	resp, err := c.ln.VerifyMessage(ctx, &lnrpc.VerifyMessageRequest{Msg: msg, Signature: signature})
	if err != nil {
		return false, "", err
	}
	return resp.Valid, resp.Pubkey, nil
}

func (c *GRPCClient) AddInvoice(ctx context.Context, amount int64, memo string) (*Invoice, error) {
	resp, err := c.ln.AddInvoice(ctx, &lnrpc.Invoice{Value: amount, Memo: memo})
	if err != nil {
		return nil, err
	}
	return &Invoice{
		Hash:           base64.StdEncoding.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
	}, nil
}

func (c *GRPCClient) LookupInvoice(ctx context.Context, hash string) (*Invoice, error) {
	rHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("decoding payment hash: %w", err)
	}

	resp, err := c.ln.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: rHash})
	if err != nil {
		return nil, err
	}
	return invoiceFromRPC(resp), nil
}

func (c *GRPCClient) SubscribeInvoices(ctx context.Context) (<-chan *Invoice, error) {
	stream, err := c.ln.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
	if err != nil {
		return nil, err
	}

	updates := make(chan *Invoice)
	go func() {
		defer close(updates)
		for {
			inv, err := stream.Recv()
			if err != nil {
				return
			}
			select {
			case updates <- invoiceFromRPC(inv):
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func invoiceFromRPC(inv *lnrpc.Invoice) *Invoice {
	return &Invoice{
		Hash:           base64.StdEncoding.EncodeToString(inv.RHash),
		PaymentRequest: inv.PaymentRequest,
		AmtPaid:        inv.AmtPaidSat,
		Settled:        inv.State == lnrpc.Invoice_SETTLED,
	}
}
