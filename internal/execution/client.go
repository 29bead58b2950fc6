package execution

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
)

// SignedOrderJSON is the wire shape of a signed CLOB order, matching the
// teacher's convertToOrderJSON output.
type SignedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderSubmissionRequest wraps a single signed order for POST /order.
type OrderSubmissionRequest struct {
	Order     SignedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
	PostOnly  bool            `json:"post_only"`
}

// OrderSubmissionResponse is the CLOB's response to a single order submission.
type OrderSubmissionResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderID"`
	ErrorMsg string `json:"errorMsg"`
}

// BatchOrderEntry is one element of a batch submission.
type BatchOrderEntry struct {
	Order     SignedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
	PostOnly  bool            `json:"post_only"`
}

// BatchOrderRequest is the payload for POST /orders.
type BatchOrderRequest []BatchOrderEntry

// BatchOrderResponse is the CLOB's response to a batch submission.
type BatchOrderResponse []OrderSubmissionResponse

// APICreds holds derived/created CLOB API credentials.
type APICreds struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	APIPassphrase string `json:"api_passphrase"`
}

// Config holds configuration for the order execution client.
type Config struct {
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	Address       string
	ProxyAddress  string
	SignatureType int
	ClobHost      string
	Logger        *zap.Logger
}

// Client submits post-only BUY orders to the Polymarket CLOB. Unlike the
// teacher's two-sided arbitrage order client, it only ever builds single
// maker BUY orders — the box bot never takes liquidity.
type Client struct {
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string
	proxyAddress  string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	clobHost      string
	logger        *zap.Logger
}

// New constructs a Client from the provided signing configuration.
func New(cfg *Config) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := cfg.Address
	if address == "" {
		publicKey := privateKey.Public()
		publicKeyECDSA, _ := publicKey.(*ecdsa.PublicKey)
		address = crypto.PubkeyToAddress(*publicKeyECDSA).Hex()
	}

	chainID := big.NewInt(137) // Polygon mainnet
	orderBuilder := builder.NewExchangeOrderBuilderImpl(chainID, nil)

	clobHost := cfg.ClobHost
	if clobHost == "" {
		clobHost = "https://clob.polymarket.com"
	}

	return &Client{
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  orderBuilder,
		clobHost:      clobHost,
		logger:        cfg.Logger,
	}, nil
}

// GetMakerAddress returns the maker address (proxy if set, otherwise EOA).
func (c *Client) GetMakerAddress() string {
	if c.proxyAddress != "" {
		return c.proxyAddress
	}
	return c.address
}

// GetSignerAddress returns the signer address (always the EOA).
func (c *Client) GetSignerAddress() string {
	return c.address
}

// CreateOrder builds and signs a single post-only BUY order for tokenID at
// price for size shares, rounding per the token's tick size.
func (c *Client) CreateOrder(tokenID string, price, size, tickSize float64) (*SignedOrderJSON, error) {
	makerAddress := c.GetMakerAddress()
	signerAddress := c.GetSignerAddress()

	sizePrecision, amountPrecision := getRoundingConfig(tickSize)
	takerTokens := roundAmount(size, sizePrecision)
	if takerTokens <= 0 {
		return nil, fmt.Errorf("order size rounds to zero at tick size %v", tickSize)
	}

	makerUSD := roundAmount(takerTokens*price, amountPrecision)
	makerAmount := usdToRawAmount(makerUSD)
	takerAmount := usdToRawAmount(takerTokens)

	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        signerAddress,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	c.logger.Debug("order-built",
		zap.String("maker", makerAddress),
		zap.String("token_id", tokenID),
		zap.Float64("price", price),
		zap.Float64("size", takerTokens))

	json := convertToOrderJSON(signedOrder)
	return &json, nil
}

// PostOrder submits a single GTC order to POST /order.
func (c *Client) PostOrder(ctx context.Context, order *SignedOrderJSON) (*OrderSubmissionResponse, error) {
	start := time.Now()
	req := OrderSubmissionRequest{Order: *order, Owner: c.apiKey, OrderType: "GTC", PostOnly: true}

	resp, err := doSigned[*OrderSubmissionResponse](ctx, c, "/order", req)
	OrderSubmissionDuration.Observe(time.Since(start).Seconds())

	outcome := "unknown"
	if err != nil {
		OrderSubmissionErrorsTotal.WithLabelValues(outcome).Inc()
		return nil, fmt.Errorf("submit order: %w", err)
	}
	OrdersSubmittedTotal.WithLabelValues(outcome).Inc()
	return resp, nil
}

// PostOrders submits a batch of GTC orders to POST /orders.
func (c *Client) PostOrders(ctx context.Context, orders []*SignedOrderJSON) (BatchOrderResponse, error) {
	start := time.Now()
	entries := make(BatchOrderRequest, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, BatchOrderEntry{Order: *o, Owner: c.apiKey, OrderType: "GTC", PostOnly: true})
	}

	resp, err := doSigned[BatchOrderResponse](ctx, c, "/orders", entries)
	OrderSubmissionDuration.Observe(time.Since(start).Seconds())
	BatchSizeObserved.Observe(float64(len(orders)))

	if err != nil {
		OrderSubmissionErrorsTotal.WithLabelValues("batch").Inc()
		return nil, fmt.Errorf("submit batch: %w", err)
	}
	OrdersSubmittedTotal.WithLabelValues("batch").Add(float64(len(orders)))
	return resp, nil
}

// cancelAllRequest is the empty-bodied request for POST /cancel-all.
type cancelAllRequest struct{}

// CancelAll cancels every open order belonging to this account.
func (c *Client) CancelAll(ctx context.Context) error {
	CancelAllTotal.Inc()
	_, err := doSigned[map[string]interface{}](ctx, c, "/cancel-all", cancelAllRequest{})
	if err != nil {
		CancelAllErrorsTotal.Inc()
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// deriveAPICredsRequest is the body for GET /auth/derive-api-key.
type deriveAPICredsRequest struct {
	Address string `json:"address"`
}

// CreateOrDeriveAPICreds derives existing L2 API credentials for this
// account via GET /auth/derive-api-key. It does not create new credentials
// when none exist for the account.
func (c *Client) CreateOrDeriveAPICreds(ctx context.Context) (*APICreds, error) {
	body, err := json.Marshal(deriveAPICredsRequest{Address: c.address})
	if err != nil {
		return nil, fmt.Errorf("marshal derive request: %w", err)
	}

	url := c.clobHost + "/auth/derive-api-key"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("POLY_ADDRESS", c.address)

	client := &http.Client{Timeout: 30 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var creds APICreds
	if err := json.Unmarshal(respBody, &creds); err != nil {
		return nil, fmt.Errorf("parse creds: %w", err)
	}

	c.apiKey = creds.APIKey
	c.secret = creds.APISecret
	c.passphrase = creds.APIPassphrase

	return &creds, nil
}

// GetAPICreds returns the currently-held API credentials.
func (c *Client) GetAPICreds() APICreds {
	return APICreds{APIKey: c.apiKey, APISecret: c.secret, APIPassphrase: c.passphrase}
}

func convertToOrderJSON(order *model.SignedOrder) SignedOrderJSON {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	return SignedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}
}

// doSigned signs and submits an HMAC-authenticated POST request against the
// CLOB, decoding the JSON response into T. Generalizes the order/batch-order
// submission mechanics to any endpoint/body.
func doSigned[T any](ctx context.Context, c *Client, path string, body interface{}) (T, error) {
	var zero T

	reqBody, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("marshal request: %w", err)
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signaturePayload := timestamp + http.MethodPost + path + string(reqBody)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return zero, fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(signaturePayload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	url := c.clobHost + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("POLY_API_KEY", c.apiKey)
	httpReq.Header.Set("POLY_SIGNATURE", signature)
	httpReq.Header.Set("POLY_TIMESTAMP", timestamp)
	httpReq.Header.Set("POLY_PASSPHRASE", c.passphrase)
	httpReq.Header.Set("POLY_ADDRESS", c.address)

	client := &http.Client{Timeout: 30 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return zero, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var out T
	if err := json.Unmarshal(respBody, &out); err != nil {
		return zero, fmt.Errorf("parse response: %w", err)
	}

	return out, nil
}

func usdToRawAmount(usd float64) string {
	rawAmount := int64(usd * 1000000)
	return fmt.Sprintf("%d", rawAmount)
}

// getRoundingConfig returns the precision for size and amount based on tick size.
func getRoundingConfig(tickSize float64) (sizePrecision int, amountPrecision int) {
	switch tickSize {
	case 0.1:
		return 2, 3
	case 0.01:
		return 2, 4
	case 0.001:
		return 2, 5
	case 0.0001:
		return 2, 6
	default:
		return 2, 4
	}
}

// roundAmount rounds a value to the given number of decimal places.
func roundAmount(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}
