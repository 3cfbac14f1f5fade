package store

import (
	"errors"

	"quicklist/pkg/domain"
)

// ErrDuplicateEmail signals a registration attempt with an email that is
// already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// SearchQuery filters the listing search surface. Nil price bounds mean
// unbounded; empty strings mean "no filter".
type SearchQuery struct {
	Text       string
	CategoryID string
	Location   string
	MinPrice   *float64
	MaxPrice   *float64
}

// Store defines persistence operations for users, categories, listings, and
// conversations.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// categories (read-only lookup from the pipeline's perspective)
	ListCategories() ([]domain.Category, error)
	GetCategoryByName(name string) (domain.Category, bool, error)

	// listings
	CreateListing(domain.Listing) error
	GetListing(id string) (domain.Listing, bool, error)
	IncrementListingViews(id string) error
	SearchListings(q SearchQuery) ([]domain.Listing, error)

	// conversations
	CreateConversation(domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	AppendMessage(domain.Message) error
	ListMessages(conversationID string) ([]domain.Message, error)
}

// CategoryNames is the fixed marketplace taxonomy seeded at startup.
var CategoryNames = []string{
	"Electronics",
	"Appliances",
	"Furniture",
	"Vehicles",
	"Clothing",
	"Home & Garden",
	"Sports & Outdoors",
	"Toys & Games",
	"Books & Media",
	"Collectibles",
}
