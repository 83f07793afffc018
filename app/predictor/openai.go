package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIBaseURL = "https://api.openai.com"

type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPTimeout time.Duration

	// APIBaseURL overrides the OpenAI endpoint, used by tests.
	APIBaseURL string
}

type OpenAIPredictor struct {
	cfg    OpenAIConfig
	client *http.Client
}

func NewOpenAIPredictor(cfg OpenAIConfig) *OpenAIPredictor {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = openAIBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4.1"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}

	return &OpenAIPredictor{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (p *OpenAIPredictor) Predict(ctx context.Context, input *PredictInput) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", errors.New("openai api key is not configured")
	}
	if len(input.Images) == 0 {
		return "", errors.New("at least one image is required")
	}

	images := input.Images
	if len(images) > MaxImages {
		images = images[:MaxImages]
	}

	content := []chatContentPart{
		{Type: "text", Text: buildPrompt(input)},
	}
	for _, image := range images {
		content = append(content, chatContentPart{
			Type:     "image_url",
			ImageURL: &chatImagePart{URL: normalizeImageRef(image)},
		})
	}

	payload := &chatRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai response contains no choices")
	}

	prediction := strings.TrimSpace(completion.Choices[0].Message.Content)
	if prediction == "" {
		return "", errors.New("openai returned an empty prediction")
	}

	return prediction, nil
}

func buildPrompt(input *PredictInput) string {
	var b strings.Builder
	b.WriteString("You are an experienced and intuitive coffee-cup fortune reader. ")
	b.WriteString("Read the patterns in the attached photos of a finished cup of coffee and its saucer, ")
	b.WriteString("and write a calm, respectful, encouraging reading for the person described below. ")
	b.WriteString("Ground every observation in a shape you can see in the cup. Do not promise outcomes.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", input.SubjectName)
	fmt.Fprintf(&b, "Age: %s\n", input.SubjectAge)
	fmt.Fprintf(&b, "What they want the reading to focus on: %s\n", input.Intent)
	if strings.TrimSpace(input.About) != "" {
		fmt.Fprintf(&b, "About them: %s\n", input.About)
	}
	return b.String()
}

// normalizeImageRef accepts stored object URLs as-is and wraps bare base64
// payloads into data URLs the chat API understands.
func normalizeImageRef(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/jpeg;base64," + image
}
