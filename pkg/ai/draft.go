package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quicklist/pkg/domain"
)

// ErrMalformedDraft marks advisor output that violates the structured-output
// contract and cannot be coerced into a ListingDraft.
var ErrMalformedDraft = errors.New("malformed advisor draft")

const maxTitleLen = 60

type rawDraft struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	SuggestedPrice *float64 `json:"suggestedPrice"`
	Condition      string   `json:"condition"`
	KeyFeatures    []string `json:"keyFeatures"`
	Brand          string   `json:"brand"`
}

// ParseDraft validates and coerces raw advisor text into a ListingDraft.
// Policy: markdown fences are stripped; a missing suggestedPrice defaults to
// 0; a negative price is a contract violation; conditions outside the enum
// map to "good"; titles are clamped to 60 characters.
func ParseDraft(text string) (domain.ListingDraft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw rawDraft
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.ListingDraft{}, fmt.Errorf("%w: %v", ErrMalformedDraft, err)
	}
	if strings.TrimSpace(raw.Title) == "" {
		return domain.ListingDraft{}, fmt.Errorf("%w: title missing", ErrMalformedDraft)
	}

	price := 0.0
	if raw.SuggestedPrice != nil {
		if *raw.SuggestedPrice < 0 {
			return domain.ListingDraft{}, fmt.Errorf("%w: negative suggestedPrice", ErrMalformedDraft)
		}
		price = *raw.SuggestedPrice
	}

	title := strings.TrimSpace(raw.Title)
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}

	return domain.ListingDraft{
		Title:          title,
		Description:    strings.TrimSpace(raw.Description),
		Category:       strings.TrimSpace(raw.Category),
		SuggestedPrice: price,
		Condition:      domain.ParseCondition(raw.Condition),
		KeyFeatures:    raw.KeyFeatures,
		Brand:          strings.TrimSpace(raw.Brand),
	}, nil
}
