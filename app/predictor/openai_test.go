package predictor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOpenAIForTest(t *testing.T, handler http.HandlerFunc) *OpenAIPredictor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAIPredictor(OpenAIConfig{
		APIKey:     "sk-test",
		Model:      "gpt-4.1",
		APIBaseURL: server.URL,
	})
}

func predictInput() *PredictInput {
	return &PredictInput{
		Images:      []string{"https://objects.example/user-1/img.jpg"},
		SubjectName: "Ana",
		SubjectAge:  "30",
		Intent:      "career",
	}
}

func TestPredictReturnsTrimmedCompletion(t *testing.T) {
	predictor := newOpenAIForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload chatRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("request body is not valid JSON: %v", err)
		}
		if payload.Model != "gpt-4.1" {
			t.Fatalf("unexpected model: %s", payload.Model)
		}
		if len(payload.Messages) != 1 || len(payload.Messages[0].Content) != 2 {
			t.Fatalf("expected one message with prompt and one image, got %+v", payload.Messages)
		}
		prompt := payload.Messages[0].Content[0].Text
		if !strings.Contains(prompt, "Ana") || !strings.Contains(prompt, "career") {
			t.Fatalf("prompt must carry subject details, got %q", prompt)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  Good things ahead  "}}]}`))
	})

	prediction, err := predictor.Predict(context.Background(), predictInput())
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if prediction != "Good things ahead" {
		t.Fatalf("unexpected prediction: %q", prediction)
	}
}

func TestPredictCapsImages(t *testing.T) {
	predictor := newOpenAIForTest(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload chatRequest
		_ = json.Unmarshal(body, &payload)
		if got := len(payload.Messages[0].Content) - 1; got != MaxImages {
			t.Fatalf("expected %d images, got %d", MaxImages, got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	input := predictInput()
	input.Images = []string{"a", "b", "c", "d", "e", "f"}
	if _, err := predictor.Predict(context.Background(), input); err != nil {
		t.Fatalf("predict failed: %v", err)
	}
}

func TestPredictFailsOnUpstreamError(t *testing.T) {
	predictor := newOpenAIForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := predictor.Predict(context.Background(), predictInput())
	if err == nil {
		t.Fatal("expected an error for an upstream failure")
	}
}

func TestPredictFailsOnEmptyCompletion(t *testing.T) {
	predictor := newOpenAIForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	})

	_, err := predictor.Predict(context.Background(), predictInput())
	if err == nil {
		t.Fatal("expected an error for an empty prediction")
	}
}

func TestNormalizeImageRef(t *testing.T) {
	if got := normalizeImageRef("https://objects.example/img.jpg"); got != "https://objects.example/img.jpg" {
		t.Fatalf("stored URLs must pass through, got %q", got)
	}
	if got := normalizeImageRef("data:image/png;base64,aGk="); got != "data:image/png;base64,aGk=" {
		t.Fatalf("data URLs must pass through, got %q", got)
	}
	if got := normalizeImageRef("aGk="); got != "data:image/jpeg;base64,aGk=" {
		t.Fatalf("bare base64 must be wrapped, got %q", got)
	}
}
