package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quicklist/pkg/domain"
)

const (
	draftMaxTokens = 800
	replyMaxTokens = 300
)

const draftSystemPrompt = `Create marketplace listing JSON with: title (max 60 chars), ` +
	`description (2-3 sentences), category (Electronics/Appliances/Furniture/Vehicles/Clothing/` +
	`Home & Garden/Sports & Outdoors/Toys & Games/Books & Media/Collectibles), ` +
	`suggestedPrice (number), condition (new/like_new/good/fair/poor), keyFeatures (array), ` +
	`brand (string or null)`

// OpenAIVisionAdvisor implements ListingAdvisor against any OpenAI-compatible
// /v1/chat/completions endpoint with vision support.
type OpenAIVisionAdvisor struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIVisionAdvisor builds an advisor client. baseURL should include the
// /v1 prefix, e.g. "https://api.openai.com/v1". apiKey can be empty for local
// models that do not require authentication.
func NewOpenAIVisionAdvisor(baseURL, apiKey, model string) (*OpenAIVisionAdvisor, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	model = strings.TrimSpace(model)
	if baseURL == "" {
		return nil, fmt.Errorf("advisor base URL required")
	}
	if model == "" {
		return nil, fmt.Errorf("advisor model required")
	}
	return &OpenAIVisionAdvisor{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		// Per-call deadlines come from the caller's context; this is a
		// backstop against connections that never complete.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// DraftListing implements ListingAdvisor. All images go into a single user
// turn so the model sees the complete set at once.
func (a *OpenAIVisionAdvisor) DraftListing(ctx context.Context, req DraftRequest) (domain.ListingDraft, error) {
	condition := strings.TrimSpace(req.Condition)
	if condition == "" {
		condition = "not specified"
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = "not specified"
	}

	parts := make([]oaiContentPart, 0, len(req.Images)+1)
	parts = append(parts, oaiContentPart{
		Type: "text",
		Text: fmt.Sprintf("Create listing. Condition: %s. Location: %s.", condition, location),
	})
	for _, img := range req.Images {
		parts = append(parts, oaiContentPart{
			Type:     "image_url",
			ImageURL: &oaiImageURL{URL: img.DataURL},
		})
	}

	chatReq := oaiChatRequest{
		Model: a.model,
		Messages: []oaiMessage{
			{Role: "system", Content: draftSystemPrompt},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
		MaxTokens:      draftMaxTokens,
	}
	text, err := a.complete(ctx, chatReq)
	if err != nil {
		return domain.ListingDraft{}, err
	}
	return ParseDraft(text)
}

// Reply implements ListingAdvisor for conversation turns.
func (a *OpenAIVisionAdvisor) Reply(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	chatReq := oaiChatRequest{
		Model: a.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens: replyMaxTokens,
	}
	return a.complete(ctx, chatReq)
}

func (a *OpenAIVisionAdvisor) complete(ctx context.Context, chatReq oaiChatRequest) (string, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", err
	}
	url := a.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("advisor api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("advisor api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("advisor decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from advisor")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from advisor")
	}
	return text, nil
}

// OpenAI-compatible request/response types. Content is a string for plain
// turns and a part array for vision turns.

type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
