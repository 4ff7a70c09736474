package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const stripeAPIBaseURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type StripeGateway struct {
	cfg     StripeConfig
	baseURL string
	client  *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tolerance := cfg.SignatureToleranceSeconds
	if tolerance <= 0 {
		tolerance = 300
	}
	cfg.SignatureToleranceSeconds = tolerance

	return &StripeGateway{
		cfg:     cfg,
		baseURL: stripeAPIBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	if len(input.LineItems) == 0 {
		return nil, errors.New("checkout session requires at least one line item")
	}

	values := buildSessionValues(input)
	body, err := g.postForm(ctx, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(payload.ID)
	if sessionID == "" {
		return nil, errors.New("stripe checkout session id missing")
	}

	return &CreateSessionOutput{
		SessionID:   sessionID,
		RedirectURL: strings.TrimSpace(payload.URL),
	}, nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, input *RefundInput) (*RefundOutput, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	if strings.TrimSpace(input.PaymentID) == "" {
		return nil, errors.New("refund requires a payment reference")
	}

	values := url.Values{}
	values.Set("payment_intent", strings.TrimSpace(input.PaymentID))
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		values.Set("reason", reason)
	}
	// A full refund omits the amount field entirely; Stripe treats an
	// explicit zero as invalid.
	if input.AmountCents != nil {
		values.Set("amount", strconv.FormatInt(*input.AmountCents, 10))
	}
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := g.postForm(ctx, "/v1/refunds", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &RefundOutput{
		RefundID:    strings.TrimSpace(payload.ID),
		AmountCents: payload.Amount,
		Status:      strings.TrimSpace(payload.Status),
	}, nil
}

func (g *StripeGateway) VerifyAndParseEvent(payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if !verifyStripeSignature(payload, signature, g.cfg.WebhookSecret, g.cfg.SignatureToleranceSeconds) {
		return nil, errors.New("invalid stripe signature")
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventMalformed, err)
	}

	result := &WebhookEvent{
		GatewayEventID: strings.TrimSpace(event.ID),
		Type:           strings.TrimSpace(event.Type),
	}

	switch result.Type {
	case "payment.succeeded", "payment.failed", "payment.canceled":
		assignPaymentFields(result, event.Data.Object)
	case "charge.refunded":
		assignChargeFields(result, event.Data.Object)
	}

	return result, nil
}

func (g *StripeGateway) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", gatewayError("/v1/payment_intents", resp.StatusCode, body)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	switch payload.Status {
	case "succeeded":
		return "succeeded", nil
	case "canceled":
		return "canceled", nil
	default:
		return "", nil
	}
}

func buildSessionValues(input *CreateSessionInput) url.Values {
	values := url.Values{}
	values.Set("mode", "payment")

	for i, item := range input.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		values.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))

		if item.GatewayPriceID != nil && strings.TrimSpace(*item.GatewayPriceID) != "" {
			values.Set(prefix+"[price]", strings.TrimSpace(*item.GatewayPriceID))
			continue
		}

		values.Set(prefix+"[price_data][currency]", strings.ToLower(item.Currency))
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitPriceCents, 10))
		values.Set(prefix+"[price_data][product_data][name]", item.Name)
		if desc := strings.TrimSpace(item.Description); desc != "" {
			values.Set(prefix+"[price_data][product_data][description]", desc)
		}
	}

	values.Set("success_url", input.SuccessURL)
	values.Set("cancel_url", input.CancelURL)
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		values.Set("customer_email", email)
	}
	if input.ExpiresAt > 0 {
		values.Set("expires_at", strconv.FormatInt(input.ExpiresAt, 10))
	}
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	return values
}

func (g *StripeGateway) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, gatewayError(path, resp.StatusCode, body)
	}

	return body, nil
}

func gatewayError(path string, statusCode int, body []byte) error {
	message := stripeErrorMessage(body)
	if statusCode >= 500 {
		return fmt.Errorf("%w: path=%s status=%d %s", ErrGatewayUnavailable, path, statusCode, message)
	}
	return fmt.Errorf("%w: path=%s status=%d %s", ErrGatewayRejected, path, statusCode, message)
}

func stripeErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Error.Message) != "" {
		return strings.TrimSpace(payload.Error.Message)
	}
	return string(body)
}

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	parts := strings.Split(signatureHeader, ",")
	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}

func assignPaymentFields(event *WebhookEvent, payload json.RawMessage) {
	var object struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Metadata map[string]string `json:"metadata"`
	}
	if json.Unmarshal(payload, &object) != nil {
		return
	}
	event.PaymentID = strings.TrimSpace(object.ID)
	event.AmountCents = object.Amount
	event.Currency = strings.ToUpper(strings.TrimSpace(object.Currency))
	event.Metadata = object.Metadata
}

func assignChargeFields(event *WebhookEvent, payload json.RawMessage) {
	var object struct {
		ID             string      `json:"id"`
		PaymentIntent  interface{} `json:"payment_intent"`
		Amount         int64       `json:"amount"`
		AmountRefunded int64       `json:"amount_refunded"`
		Currency       string      `json:"currency"`
	}
	if json.Unmarshal(payload, &object) != nil {
		return
	}
	event.PaymentID = parseStringish(object.PaymentIntent)
	event.AmountCents = object.Amount
	event.AmountRefundedCents = object.AmountRefunded
	event.Currency = strings.ToUpper(strings.TrimSpace(object.Currency))
}

func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if raw, ok := t["id"]; ok {
			if s, ok := raw.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
