package lightning

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacaroonCredential(t *testing.T) {
	cred := macaroonCredential{macaroonHex: "0201abcd"}

	md, err := cred.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"macaroon": "0201abcd"}, md)
	assert.True(t, cred.RequireTransportSecurity())
}

func TestDial_RejectsBadCertHex(t *testing.T) {
	_, err := Dial("10.0.0.1:10001", "not-hex", "0201abcd")
	assert.Error(t, err)
}

func TestDial_RejectsNonPEMCert(t *testing.T) {
	// Valid hex, but not a PEM certificate.
	_, err := Dial("10.0.0.1:10001", "deadbeef", "0201abcd")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PEM")
}

func TestInvoiceFromRPC(t *testing.T) {
	rHash := []byte("hash")

	inv := invoiceFromRPC(&lnrpc.Invoice{
		RHash:          rHash,
		PaymentRequest: "lnbc1invoice",
		AmtPaidSat:     100,
		State:          lnrpc.Invoice_SETTLED,
	})

	assert.Equal(t, base64.StdEncoding.EncodeToString(rHash), inv.Hash)
	assert.Equal(t, "aGFzaA==", inv.Hash)
	assert.Equal(t, "lnbc1invoice", inv.PaymentRequest)
	assert.Equal(t, int64(100), inv.AmtPaid)
	assert.True(t, inv.Settled)
}

func TestInvoiceFromRPC_OpenInvoiceIsUnsettled(t *testing.T) {
	inv := invoiceFromRPC(&lnrpc.Invoice{RHash: []byte("hash"), State: lnrpc.Invoice_OPEN})
	assert.False(t, inv.Settled)
}
