package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"quicklist/internal/util"
	"quicklist/pkg/domain"
)

const (
	negotiationFloorRatio   = 0.8
	negotiationCeilingRatio = 1.1
)

// StartResult is the output of StartConversation.
type StartResult struct {
	Conversation domain.Conversation
	AIReply      string
}

// NegotiationBounds computes the advisor's floor and ceiling for a list
// price, rounded to whole currency units.
func NegotiationBounds(price float64) (floor, ceiling int) {
	return int(math.Round(price * negotiationFloorRatio)), int(math.Round(price * negotiationCeilingRatio))
}

// StartConversation creates a buyer conversation on a listing and produces
// the first AI reply. Repeated starts for the same (listing, buyer) pair
// create separate conversations; the source enforces no uniqueness and this
// is preserved as-is.
func (a *App) StartConversation(ctx context.Context, buyerID, listingID, message string) (StartResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return StartResult{}, invalidInput("message required")
	}
	listing, ok, err := a.store.GetListing(listingID)
	if err != nil {
		return StartResult{}, fmt.Errorf("load listing: %w", err)
	}
	if !ok {
		return StartResult{}, notFound("listing not found")
	}

	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:        util.NewID(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		Status:    domain.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateConversation(conversation); err != nil {
		return StartResult{}, fmt.Errorf("create conversation: %w", err)
	}

	floor, ceiling := NegotiationBounds(listing.Price)
	systemPrompt := fmt.Sprintf(
		`You are the AI sales assistant for "%s" ($%s). Be helpful with questions, negotiation (range: $%d-$%d), and scheduling. Keep responses friendly and concise.`,
		listing.Title, strconv.FormatFloat(listing.Price, 'f', -1, 64), floor, ceiling,
	)
	reply, err := a.advisorReply(ctx, systemPrompt, message)
	if err != nil {
		return StartResult{}, err
	}

	// Fixed order: the buyer's message, then the AI's.
	buyer := buyerID
	if err := a.store.AppendMessage(domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		SenderID:       &buyer,
		Content:        message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return StartResult{}, fmt.Errorf("save buyer message: %w", err)
	}
	if err := a.store.AppendMessage(domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		SenderID:       nil,
		Content:        reply,
		AIGenerated:    true,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return StartResult{}, fmt.Errorf("save ai message: %w", err)
	}
	return StartResult{Conversation: conversation, AIReply: reply}, nil
}

// ContinueConversation records an incoming message and, for buyer turns,
// generates one AI reply. The AI never speaks for the seller. The
// continuation prompt carries only the listing title, not prior history: by
// contract the advisor is stateless per call and cannot remember earlier
// turns (accepted limitation).
func (a *App) ContinueConversation(ctx context.Context, senderID, conversationID, message string, role domain.SenderRole) (string, bool, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", false, invalidInput("message required")
	}
	if role != domain.RoleBuyer && role != domain.RoleSeller {
		return "", false, invalidInput("userType must be buyer or seller")
	}
	conversation, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return "", false, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return "", false, notFound("conversation not found")
	}

	// The incoming message is always recorded first, before any AI work.
	sender := senderID
	if err := a.store.AppendMessage(domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		SenderID:       &sender,
		Content:        message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return "", false, fmt.Errorf("save message: %w", err)
	}
	if role != domain.RoleBuyer {
		return "", false, nil
	}

	listing, ok, err := a.store.GetListing(conversation.ListingID)
	if err != nil {
		return "", false, fmt.Errorf("load listing: %w", err)
	}
	if !ok {
		return "", false, notFound("listing not found")
	}
	systemPrompt := fmt.Sprintf(
		`Continue assisting with "%s". Help with questions, negotiation, or scheduling.`,
		listing.Title,
	)
	reply, err := a.advisorReply(ctx, systemPrompt, message)
	if err != nil {
		return "", false, err
	}
	if err := a.store.AppendMessage(domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		SenderID:       nil,
		Content:        reply,
		AIGenerated:    true,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return "", false, fmt.Errorf("save ai message: %w", err)
	}
	return reply, true, nil
}

func (a *App) advisorReply(ctx context.Context, systemPrompt, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.advisorTimeout)
	defer cancel()
	reply, err := a.advisor.Reply(callCtx, systemPrompt, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newError(KindTimeout, "advisor call timed out", err)
		}
		return "", newError(KindUpstream, "advisor call failed", err)
	}
	return reply, nil
}
