//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const (
	defaultOrdersHTTPBase      = "http://localhost:48080"
	defaultOrdersAdminAPIKey   = "orders-admin-key"
	defaultOrdersWebhookSecret = "whsec_e2e_secret"
)

func ordersAdminAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("ORDERS_ADMIN_API_KEY")); value != "" {
		return value
	}
	return defaultOrdersAdminAPIKey
}

func ordersWebhookSecret() string {
	if value := strings.TrimSpace(os.Getenv("ORDERS_STRIPE_WEBHOOK_SECRET")); value != "" {
		return value
	}
	return defaultOrdersWebhookSecret
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func (c *httpClient) postWebhook(t *testing.T, payload []byte, signature string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	return resp, bodyBytes
}

func signWebhookPayload(payload []byte, secret string, at time.Time) string {
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func TestOrdersE2E(t *testing.T) {
	httpBase := os.Getenv("ORDERS_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultOrdersHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	paymentID := fmt.Sprintf("pi_e2e_%d", time.Now().UnixNano())

	t.Run("CheckoutEmptyCart", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/checkout", map[string]any{"cart": []any{}}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("CheckoutUnknownOffering", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/checkout", map[string]any{
			"cart": []map[string]any{{"offeringId": "e2e-unknown-plan", "quantity": 1}},
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("WebhookMissingSignature", func(t *testing.T) {
		resp, _ := client.postWebhook(t, []byte(`{"id":"evt_1"}`), "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("WebhookForgedSignature", func(t *testing.T) {
		payload := []byte(fmt.Sprintf(`{"id":"evt_forged","type":"payment.succeeded","data":{"object":{"id":"%s","amount":10000,"currency":"usd"}}}`, paymentID))
		resp, _ := client.postWebhook(t, payload, signWebhookPayload(payload, "whsec_wrong_secret", time.Now()))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("WebhookSucceededCreatesOrder", func(t *testing.T) {
		payload := []byte(fmt.Sprintf(`{"id":"evt_e2e_1","type":"payment.succeeded","data":{"object":{"id":"%s","amount":10000,"currency":"usd","metadata":{"userId":"e2e-user"}}}}`, paymentID))
		resp, body := client.postWebhook(t, payload, signWebhookPayload(payload, ordersWebhookSecret(), time.Now()))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
		}

		listResp, listBody := client.doJSON(t, http.MethodGet, "/admin/orders?status=succeeded&limit=500", nil, map[string]string{"X-API-Key": ordersAdminAPIKey()})
		if listResp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", listResp.StatusCode, listBody)
		}

		var payload2 struct {
			Orders []struct {
				ID                string `json:"id"`
				ExternalPaymentID string `json:"externalPaymentId"`
				Status            string `json:"status"`
			} `json:"orders"`
		}
		if err := json.Unmarshal(listBody, &payload2); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		found := false
		for _, order := range payload2.Orders {
			if order.ExternalPaymentID == paymentID {
				found = true
				if order.Status != "succeeded" {
					t.Fatalf("unexpected order status: %s", order.Status)
				}
			}
		}
		if !found {
			t.Fatalf("order for %s not found in list", paymentID)
		}
	})

	t.Run("WebhookReplayIsIdempotent", func(t *testing.T) {
		payload := []byte(fmt.Sprintf(`{"id":"evt_e2e_1","type":"payment.succeeded","data":{"object":{"id":"%s","amount":10000,"currency":"usd"}}}`, paymentID))
		resp, body := client.postWebhook(t, payload, signWebhookPayload(payload, ordersWebhookSecret(), time.Now()))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on replay, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("AdminRequiresAPIKey", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/admin/orders", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})
}
