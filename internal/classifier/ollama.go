package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/mealsnap/mealsnap-go/internal/errors"
)

const ollamaPrompt = `Identify the foods visible in this photo of a meal.
Answer with JSON only, in the form {"foods":[{"label":"<food name>","confidence":<0..1>}]}.
Use short, common English food names in singular form, most prominent food first.
Return {"foods":[]} if there is no food in the photo.`

// OllamaConfig configures the vision LLM backend.
type OllamaConfig struct {
	URL        string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OllamaModel asks a local vision LLM to list the foods in a photo.
type OllamaModel struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllamaModel creates a client for the Ollama server at cfg.URL. Any path on the URL is dropped.
func NewOllamaModel(cfg OllamaConfig) (*OllamaModel, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Newf("invalid ollama URL %q", cfg.URL).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Model == "" {
		return nil, errors.Newf("ollama model name is required").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	return &OllamaModel{
		client:  api.NewClient(baseURL, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (m *OllamaModel) Name() string {
	return "ollama:" + m.model
}

// Predict sends img as JPEG and parses the model's JSON answer. The model's order is kept.
func (m *OllamaModel) Predict(ctx context.Context, img *image.NRGBA) ([]Prediction, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image for ollama: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: m.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: ollamaPrompt,
				Images:  []api.ImageData{api.ImageData(buf.Bytes())},
			},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	var content strings.Builder
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	return parseOllamaFoods(content.String())
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (m *OllamaModel) Close() error {
	return nil
}

type ollamaFoods struct {
	Foods []struct {
		Label      string  `json:"label"`
		Confidence float32 `json:"confidence"`
	} `json:"foods"`
}

// parseOllamaFoods accepts the JSON object optionally wrapped in a markdown code fence.
func parseOllamaFoods(raw string) ([]Prediction, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	var parsed ollamaFoods
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("unparsable ollama response: %w", err)
	}

	predictions := make([]Prediction, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		label := strings.ToLower(strings.TrimSpace(f.Label))
		if label == "" {
			continue
		}
		predictions = append(predictions, Prediction{Label: label, Confidence: min(max(f.Confidence, 0), 1)})
	}
	return predictions, nil
}
