package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kitchencloud/checkout-go/internal/gateway"
	"github.com/kitchencloud/checkout-go/internal/httpapi"
	"github.com/kitchencloud/checkout-go/internal/payment"
	"github.com/kitchencloud/checkout-go/internal/testutil"
)

const testKeySecret = "int-test-secret"

// fakeGateway stands in for the external processor so the flow test only
// needs docker for Postgres.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	var seq int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders", r.URL.Path)
		var body struct {
			Amount int64 `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		seq++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     fmt.Sprintf("order_flow_%d", seq),
			"amount": body.Amount,
			"status": "created",
		})
	}))
}

func TestPaymentFlow_CreateVerifyClaim(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, cleanup := testutil.StartPostgres(ctx, t)
	t.Cleanup(cleanup)

	gw := fakeGateway(t)
	t.Cleanup(gw.Close)

	logger := log.New(io.Discard, "", 0)
	repo := payment.NewPostgresRepository(pool)
	processor := gateway.NewClient(gw.URL, "key_int", testKeySecret, gw.Client())
	svc := payment.NewService(repo, processor, "key_int", testKeySecret, nil, logger)

	metrics := httpapi.NewMetrics(prometheus.NewRegistry())
	router := httpapi.NewRouter(httpapi.NewPaymentHandler(svc, metrics), metrics)

	// create-order registers the charge and returns the collection params
	var created struct {
		OrderID string `json:"orderId"`
		Amount  int64  `json:"amount"`
		KeyID   string `json:"keyId"`
	}
	res := postJSON(t, router, "/api/payment/create-order", map[string]any{"amount": 30200})
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	require.NotEmpty(t, created.OrderID)
	require.Equal(t, int64(30200), created.Amount)
	require.Equal(t, "key_int", created.KeyID)

	// a bad signature is rejected and does not consume the intent
	res = postJSON(t, router, "/api/payment/verify-payment", map[string]any{
		"orderId":   created.OrderID,
		"paymentId": "pay_flow_1",
		"signature": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)

	// the real callback signature verifies
	sig := payment.Sign(created.OrderID, "pay_flow_1", testKeySecret)
	res = postJSON(t, router, "/api/payment/verify-payment", map[string]any{
		"orderId":   created.OrderID,
		"paymentId": "pay_flow_1",
		"signature": sig,
	})
	require.Equal(t, http.StatusOK, res.Code)

	// first claim wins, the second conflicts
	res = postJSON(t, router, "/api/payment/claim-intent", map[string]any{"orderId": created.OrderID})
	require.Equal(t, http.StatusOK, res.Code)
	var claimed struct {
		PaymentID string `json:"paymentId"`
		Amount    int64  `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &claimed))
	require.Equal(t, "pay_flow_1", claimed.PaymentID)
	require.Equal(t, int64(30200), claimed.Amount)

	res = postJSON(t, router, "/api/payment/claim-intent", map[string]any{"orderId": created.OrderID})
	require.Equal(t, http.StatusConflict, res.Code)

	// the reconciliation listing shows the claimed intent
	req := httptest.NewRequest(http.MethodGet, "/api/payment/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var intents []payment.Intent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intents))
	require.Len(t, intents, 1)
	require.Equal(t, payment.StatusClaimed, intents[0].Status)
	require.Equal(t, created.OrderID, intents[0].GatewayOrderID)
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
