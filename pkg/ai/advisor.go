package ai

import (
	"context"

	"quicklist/pkg/domain"
)

// ImagePayload is one normalized image in base64 data-URL form, ready for a
// vision-capable model.
type ImagePayload struct {
	DataURL string
}

// DraftRequest carries everything one listing-draft call needs.
type DraftRequest struct {
	Images    []ImagePayload
	Condition string
	Location  string
}

// ListingAdvisor is the external structured-output capability consumed by the
// pipeline and the conversation flow. Implementations are stateless per call.
type ListingAdvisor interface {
	// DraftListing submits all images plus context in one call and returns
	// the advisor's structured listing attributes.
	DraftListing(ctx context.Context, req DraftRequest) (domain.ListingDraft, error)

	// Reply generates a free-text chat turn from a system prompt and the
	// latest user message.
	Reply(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
