package domain

import (
	"strings"
	"time"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingSold     ListingStatus = "sold"
)

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

// ParseCondition maps free-text condition labels into the fixed enum.
// Unrecognized input maps to ConditionGood.
func ParseCondition(raw string) Condition {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ConditionNew):
		return ConditionNew
	case string(ConditionLikeNew), "like new", "like-new":
		return ConditionLikeNew
	case string(ConditionGood):
		return ConditionGood
	case string(ConditionFair):
		return ConditionFair
	case string(ConditionPoor):
		return ConditionPoor
	default:
		return ConditionGood
	}
}

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// SenderRole identifies who authored a human message in a conversation.
type SenderRole string

const (
	RoleBuyer  SenderRole = "buyer"
	RoleSeller SenderRole = "seller"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Listing struct {
	ID          string        `json:"id"`
	SellerID    string        `json:"sellerId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Price       float64       `json:"price"`
	Condition   Condition     `json:"condition"`
	CategoryID  *string       `json:"categoryId"`
	Location    string        `json:"location"`
	Images      []string      `json:"images"`
	AIGenerated bool          `json:"aiGenerated"`
	AIMetadata  *AIMetadata   `json:"aiMetadata,omitempty"`
	Views       int64         `json:"views"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// AIMetadata is the free-form advisor output persisted alongside a listing.
type AIMetadata struct {
	KeyFeatures []string `json:"keyFeatures,omitempty"`
	Brand       string   `json:"brand,omitempty"`
}

// ListingDraft is the validated structured result of one advisor call.
// It is transient: produced once per pipeline run and mapped into a Listing.
type ListingDraft struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	SuggestedPrice float64   `json:"suggestedPrice"`
	Condition      Condition `json:"condition"`
	KeyFeatures    []string  `json:"keyFeatures"`
	Brand          string    `json:"brand,omitempty"`
}

type Conversation struct {
	ID        string             `json:"id"`
	ListingID string             `json:"listingId"`
	BuyerID   string             `json:"buyerId"`
	SellerID  string             `json:"sellerId"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Message is an append-only conversation entry. AI-authored messages have a
// nil SenderID and AIGenerated set; human messages the inverse.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       *string   `json:"senderId"`
	Content        string    `json:"content"`
	AIGenerated    bool      `json:"aiGenerated"`
	CreatedAt      time.Time `json:"createdAt"`
}
