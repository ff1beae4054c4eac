package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"valorant-scout/internal/config"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// classifierPrompt pins the model to a closed label set; anything else is
// treated as NO_EVENT by the parser.
const classifierPrompt = `You are a visual referee for a professional VALORANT match.

Classify exactly ONE label:
- KILL
- DEATH
- ROUND_END
- NO_EVENT

Only output the label.`

// Classifier is the image-classification boundary. Classify returns the raw
// model output; label parsing is the caller's job.
type Classifier interface {
	Classify(ctx context.Context, jpeg []byte) (string, error)
}

// OllamaClassifier submits frames to a local Ollama vision model.
type OllamaClassifier struct {
	url    string
	model  string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewOllamaClassifier(cfg *config.Config, logger zerolog.Logger) *OllamaClassifier {
	return &OllamaClassifier{
		url:   cfg.OllamaURL,
		model: cfg.VLMModel,
		client: &fasthttp.Client{
			MaxConnsPerHost:     4,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Images  []string      `json:"images"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	// Zero temperature for classification consistency, short responses only.
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClassifier) Classify(ctx context.Context, jpeg []byte) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   c.model,
		Prompt:  classifierPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(jpeg)},
		Stream:  false,
		Options: ollamaOptions{Temperature: 0, NumPredict: 10},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return "", fmt.Errorf("classify request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("classifier HTTP %d", resp.StatusCode())
	}

	var out ollamaResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to decode classify response: %w", err)
	}
	return out.Response, nil
}
