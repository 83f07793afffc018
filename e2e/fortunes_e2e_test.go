//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

const defaultFortunesHTTPBase = "http://localhost:48080"

func fortunesHTTPBase() string {
	if value := strings.TrimSpace(os.Getenv("FORTUNES_HTTP_BASE")); value != "" {
		return value
	}
	return defaultFortunesHTTPBase
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
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
	if token := strings.TrimSpace(os.Getenv("FORTUNES_SESSION_TOKEN")); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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

func TestMain(m *testing.M) {
	if err := waitForHTTP(fortunesHTTPBase(), 60*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func submitPayload() map[string]any {
	image := base64.StdEncoding.EncodeToString([]byte("e2e cup image payload"))
	return map[string]any{
		"images": []string{image},
		"name":   "Ana",
		"age":    "30",
		"intent": "career",
		"about":  "curious about the next year",
	}
}

func TestSubmitProcessAndPollFortune(t *testing.T) {
	client := newHTTPClient(fortunesHTTPBase())

	resp, body := client.doJSON(t, http.MethodPost, "/fortunes", submitPayload())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var submitted types.SubmitFortuneResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		t.Fatalf("unmarshal submit response: %v", err)
	}
	if submitted.FortuneID == "" || submitted.Status != "pending" {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	resp, body = client.doJSON(t, http.MethodPost, "/fortunes/process", map[string]string{
		"fortuneId": submitted.FortuneID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var processed types.PredictionResponse
	if err := json.Unmarshal(body, &processed); err != nil {
		t.Fatalf("unmarshal process response: %v", err)
	}
	if strings.TrimSpace(processed.Prediction) == "" {
		t.Fatal("expected a non-empty prediction")
	}

	resp, body = client.doJSON(t, http.MethodGet, "/fortunes/status?fortuneId="+submitted.FortuneID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var polled types.FortuneStatusResponse
	if err := json.Unmarshal(body, &polled); err != nil {
		t.Fatalf("unmarshal status response: %v", err)
	}
	if polled.Status != "completed" || strings.TrimSpace(polled.Prediction) == "" {
		t.Fatalf("unexpected status response: %+v", polled)
	}
}

func TestProcessIsIdempotentForCompletedFortune(t *testing.T) {
	client := newHTTPClient(fortunesHTTPBase())

	_, body := client.doJSON(t, http.MethodPost, "/fortunes", submitPayload())
	var submitted types.SubmitFortuneResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		t.Fatalf("unmarshal submit response: %v", err)
	}

	var first types.PredictionResponse
	resp, body := client.doJSON(t, http.MethodPost, "/fortunes/process", map[string]string{"fortuneId": submitted.FortuneID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first process failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("unmarshal first process response: %v", err)
	}

	var second types.PredictionResponse
	resp, body = client.doJSON(t, http.MethodPost, "/fortunes/process", map[string]string{"fortuneId": submitted.FortuneID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second process failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("unmarshal second process response: %v", err)
	}
	if first.Prediction != second.Prediction {
		t.Fatal("repeat process must return the stored prediction unchanged")
	}
}

func TestStatusUnknownFortuneIs404(t *testing.T) {
	client := newHTTPClient(fortunesHTTPBase())

	resp, _ := client.doJSON(t, http.MethodGet, "/fortunes/status?fortuneId=no-such-id", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetPriceIsPublic(t *testing.T) {
	client := newHTTPClient(fortunesHTTPBase())

	resp, body := client.doJSON(t, http.MethodGet, "/payments", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("price lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var price types.PriceResponse
	if err := json.Unmarshal(body, &price); err != nil {
		t.Fatalf("unmarshal price response: %v", err)
	}
	if price.Amount <= 0 {
		t.Fatalf("expected a positive price, got %d", price.Amount)
	}
}
