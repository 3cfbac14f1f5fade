package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	Phone        string
	Location     string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type CategoryModel struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type ListingModel struct {
	ID          string `gorm:"primaryKey"`
	SellerID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Price       float64 `gorm:"not null"`
	Condition   string  `gorm:"not null"`
	CategoryID  *string `gorm:"index"`
	Location    string
	Images      datatypes.JSON `gorm:"type:jsonb"`
	AIGenerated bool           `gorm:"not null"`
	AIMetadata  datatypes.JSON `gorm:"type:jsonb"`
	Views       int64          `gorm:"not null;default:0"`
	Status      string         `gorm:"not null;index"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

type ConversationModel struct {
	ID        string    `gorm:"primaryKey"`
	ListingID string    `gorm:"not null;index"`
	BuyerID   string    `gorm:"not null;index"`
	SellerID  string    `gorm:"not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type MessageModel struct {
	ID             string  `gorm:"primaryKey"`
	ConversationID string  `gorm:"not null;index"`
	SenderID       *string // nil for AI-authored messages
	Content        string  `gorm:"type:text;not null"`
	AIGenerated    bool    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}
