package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const testPrivateKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, host string) *Client {
	t.Helper()
	c, err := New(&Config{
		APIKey:        "test-api-key",
		Secret:        "dGVzdC1zZWNyZXQ=",
		Passphrase:    "test-passphrase",
		PrivateKey:    testPrivateKey,
		SignatureType: 0,
		ClobHost:      host,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewClient_ValidPrivateKey(t *testing.T) {
	c := newTestClient(t, "https://clob.polymarket.com")

	if c.privateKey == nil {
		t.Error("expected private key to be set")
	}
	if !strings.HasPrefix(c.address, "0x") {
		t.Errorf("expected address to start with 0x, got %s", c.address)
	}
}

func TestNewClient_InvalidPrivateKey(t *testing.T) {
	_, err := New(&Config{PrivateKey: "not-hex", Logger: zap.NewNop()})
	if err == nil || !strings.Contains(err.Error(), "parse private key") {
		t.Fatalf("expected parse private key error, got %v", err)
	}
}

func TestNewClient_0xPrefixAccepted(t *testing.T) {
	c, err := New(&Config{PrivateKey: "0x" + testPrivateKey, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestGetMakerAddress_DefaultsToEOA(t *testing.T) {
	c := newTestClient(t, "https://clob.polymarket.com")
	if c.GetMakerAddress() != c.address {
		t.Errorf("expected maker to equal EOA address")
	}
}

func TestGetMakerAddress_UsesProxyWhenSet(t *testing.T) {
	c, err := New(&Config{
		PrivateKey:   testPrivateKey,
		ProxyAddress: "0x1234567890abcdef1234567890abcdef12345678",
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.GetMakerAddress() != "0x1234567890abcdef1234567890abcdef12345678" {
		t.Errorf("expected maker to be proxy address, got %s", c.GetMakerAddress())
	}
	if c.GetSignerAddress() != c.address {
		t.Errorf("expected signer to remain the EOA address")
	}
}

func TestCreateOrder_BuildsBuySideOrder(t *testing.T) {
	c := newTestClient(t, "https://clob.polymarket.com")

	order, err := c.CreateOrder("12345", 0.42, 100, 0.01)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Side != "BUY" {
		t.Errorf("expected BUY side, got %s", order.Side)
	}
	if order.TokenID != "12345" {
		t.Errorf("expected token id 12345, got %s", order.TokenID)
	}
}

func TestCreateOrder_ZeroSizeRoundsToZero(t *testing.T) {
	c := newTestClient(t, "https://clob.polymarket.com")
	if _, err := c.CreateOrder("12345", 0.42, 0.001, 0.1); err == nil {
		t.Fatalf("expected error for size rounding to zero")
	}
}

func TestPostOrder_SubmitsToConfiguredHost(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(OrderSubmissionResponse{Success: true, OrderID: "order-1"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	order, err := c.CreateOrder("12345", 0.42, 100, 0.01)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	resp, err := c.PostOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("PostOrder: %v", err)
	}
	if !resp.Success || resp.OrderID != "order-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotMethod != http.MethodPost || gotPath != "/order" {
		t.Errorf("expected POST /order, got %s %s", gotMethod, gotPath)
	}
}

func TestPostOrder_SetsPostOnly(t *testing.T) {
	var gotBody OrderSubmissionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(OrderSubmissionResponse{Success: true, OrderID: "order-1"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	order, err := c.CreateOrder("12345", 0.42, 100, 0.01)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := c.PostOrder(context.Background(), order); err != nil {
		t.Fatalf("PostOrder: %v", err)
	}
	if !gotBody.PostOnly {
		t.Errorf("expected post_only=true on the wire, got %+v", gotBody)
	}
	if gotBody.OrderType != "GTC" {
		t.Errorf("expected orderType=GTC, got %s", gotBody.OrderType)
	}
}

func TestPostOrders_SetsPostOnlyOnEveryEntry(t *testing.T) {
	var gotBody BatchOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		resp := make(BatchOrderResponse, len(gotBody))
		for i := range gotBody {
			resp[i] = OrderSubmissionResponse{Success: true, OrderID: "order"}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	o1, _ := c.CreateOrder("111", 0.4, 10, 0.01)
	o2, _ := c.CreateOrder("222", 0.6, 10, 0.01)

	if _, err := c.PostOrders(context.Background(), []*SignedOrderJSON{o1, o2}); err != nil {
		t.Fatalf("PostOrders: %v", err)
	}
	if len(gotBody) != 2 {
		t.Fatalf("expected 2 batch entries, got %d", len(gotBody))
	}
	for i, entry := range gotBody {
		if !entry.PostOnly {
			t.Errorf("entry %d: expected post_only=true, got %+v", i, entry)
		}
	}
}

func TestPostOrder_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid order"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	order, _ := c.CreateOrder("12345", 0.42, 100, 0.01)

	if _, err := c.PostOrder(context.Background(), order); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPostOrders_BatchSubmitsAllOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("expected /orders, got %s", r.URL.Path)
		}
		var req BatchOrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := make(BatchOrderResponse, len(req))
		for i := range req {
			resp[i] = OrderSubmissionResponse{Success: true, OrderID: "order"}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	o1, _ := c.CreateOrder("111", 0.4, 10, 0.01)
	o2, _ := c.CreateOrder("222", 0.6, 10, 0.01)

	resp, err := c.PostOrders(context.Background(), []*SignedOrderJSON{o1, o2})
	if err != nil {
		t.Fatalf("PostOrders: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resp))
	}
}

func TestCancelAll_SubmitsToExpectedPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"canceled": 3})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if err := c.CancelAll(context.Background()); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if gotPath != "/cancel-all" {
		t.Errorf("expected /cancel-all, got %s", gotPath)
	}
}

func TestCreateOrDeriveAPICreds_UpdatesClientCreds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/derive-api-key" {
			t.Errorf("expected /auth/derive-api-key, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(APICreds{APIKey: "new-key", APISecret: "bmV3LXNlY3JldA==", APIPassphrase: "new-pass"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	creds, err := c.CreateOrDeriveAPICreds(context.Background())
	if err != nil {
		t.Fatalf("CreateOrDeriveAPICreds: %v", err)
	}
	if creds.APIKey != "new-key" {
		t.Fatalf("unexpected creds: %+v", creds)
	}
	if got := c.GetAPICreds(); got.APIKey != "new-key" || got.APISecret != "bmV3LXNlY3JldA==" {
		t.Fatalf("expected client creds to update, got %+v", got)
	}
}

func TestRoundingConfig_MatchesTickSizeTable(t *testing.T) {
	cases := []struct {
		tick                       float64
		sizePrec, amountPrecision int
	}{
		{0.1, 2, 3},
		{0.01, 2, 4},
		{0.001, 2, 5},
		{0.0001, 2, 6},
		{0.05, 2, 4}, // unknown tick falls back to default
	}
	for _, tc := range cases {
		size, amount := getRoundingConfig(tc.tick)
		if size != tc.sizePrec || amount != tc.amountPrecision {
			t.Errorf("tick %v: expected (%d,%d), got (%d,%d)", tc.tick, tc.sizePrec, tc.amountPrecision, size, amount)
		}
	}
}
