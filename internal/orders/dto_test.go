package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/platform/httpx"
)

func TestPaymentRequestAllowsZeroAmount(t *testing.T) {
	req := PaymentRequest{Date: "2025-03-10", Kind: "cash", Amount: 0}
	require.NoError(t, httpx.Validate(req))

	req.Amount = -0.01
	require.Error(t, httpx.Validate(req))

	req.Amount = 10
	req.Kind = "card"
	require.Error(t, httpx.Validate(req))
}
