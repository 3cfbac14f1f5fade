package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quicklist/pkg/domain"
)

const migrateLockID int64 = 52210417

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, and seeds the fixed
// category taxonomy.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &CategoryModel{}, &ListingModel{}, &ConversationModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return seedCategories(tx)
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func seedCategories(db *gorm.DB) error {
	for _, name := range CategoryNames {
		var existing CategoryModel
		err := db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check category %q: %w", name, err)
		}
		if err := db.Create(&CategoryModel{ID: uuid.NewString(), Name: name}).Error; err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user, mapping unique-email conflicts to
// ErrDuplicateEmail.
func (s *GormStore) CreateUser(u domain.User) error {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("lower(email) = lower(?)", u.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	model := userToModel(u)
	return s.db.Create(&model).Error
}

// GetUserByEmail looks up a user by email (case-insensitive).
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("lower(email) = lower(?)", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListCategories returns the full taxonomy ordered by name.
func (s *GormStore) ListCategories() ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Category{ID: m.ID, Name: m.Name})
	}
	return res, nil
}

// GetCategoryByName performs a case-insensitive exact-label lookup.
func (s *GormStore) GetCategoryByName(name string) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.Where("lower(name) = lower(?)", strings.TrimSpace(name)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	return domain.Category{ID: model.ID, Name: model.Name}, true, nil
}

// CreateListing inserts a listing row.
func (s *GormStore) CreateListing(l domain.Listing) error {
	model, err := listingToModel(l)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetListing returns a listing by ID.
func (s *GormStore) GetListing(id string) (domain.Listing, bool, error) {
	var model ListingModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Listing{}, false, nil
		}
		return domain.Listing{}, false, err
	}
	listing, err := listingFromModel(model)
	if err != nil {
		return domain.Listing{}, false, err
	}
	return listing, true, nil
}

// IncrementListingViews bumps the view counter. The SQL-side increment keeps
// the counter monotonic under concurrent readers.
func (s *GormStore) IncrementListingViews(id string) error {
	return s.db.Model(&ListingModel{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// SearchListings filters active listings, newest first.
func (s *GormStore) SearchListings(q SearchQuery) ([]domain.Listing, error) {
	tx := s.db.Where("status = ?", string(domain.ListingActive)).Order("created_at DESC")
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + text + "%"
		tx = tx.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if q.CategoryID != "" {
		tx = tx.Where("category_id = ?", q.CategoryID)
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		tx = tx.Where("location ILIKE ?", "%"+loc+"%")
	}
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}
	var models []ListingModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Listing, 0, len(models))
	for _, m := range models {
		listing, err := listingFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, listing)
	}
	return res, nil
}

// CreateConversation inserts a conversation row. No uniqueness is enforced on
// (listing, buyer); repeated starts create fresh rows, matching the source.
func (s *GormStore) CreateConversation(c domain.Conversation) error {
	model := ConversationModel{
		ID:        c.ID,
		ListingID: c.ListingID,
		BuyerID:   c.BuyerID,
		SellerID:  c.SellerID,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	return s.db.Create(&model).Error
}

// GetConversation returns a conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return domain.Conversation{
		ID:        model.ID,
		ListingID: model.ListingID,
		BuyerID:   model.BuyerID,
		SellerID:  model.SellerID,
		Status:    domain.ConversationStatus(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, true, nil
}

// AppendMessage records one conversation message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		AIGenerated:    msg.AIGenerated,
		CreatedAt:      msg.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListMessages returns a conversation's messages in creation order.
func (s *GormStore) ListMessages(conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Message{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			AIGenerated:    m.AIGenerated,
			CreatedAt:      m.CreatedAt,
		})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Phone:        u.Phone,
		Location:     u.Location,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Phone:        m.Phone,
		Location:     m.Location,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func listingToModel(l domain.Listing) (ListingModel, error) {
	images, err := json.Marshal(l.Images)
	if err != nil {
		return ListingModel{}, fmt.Errorf("marshal images: %w", err)
	}
	var meta datatypes.JSON
	if l.AIMetadata != nil {
		raw, err := json.Marshal(l.AIMetadata)
		if err != nil {
			return ListingModel{}, fmt.Errorf("marshal ai metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	return ListingModel{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Condition:   string(l.Condition),
		CategoryID:  l.CategoryID,
		Location:    l.Location,
		Images:      datatypes.JSON(images),
		AIGenerated: l.AIGenerated,
		AIMetadata:  meta,
		Views:       l.Views,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}, nil
}

func listingFromModel(m ListingModel) (domain.Listing, error) {
	var images []string
	if len(m.Images) > 0 {
		if err := json.Unmarshal(m.Images, &images); err != nil {
			return domain.Listing{}, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	var meta *domain.AIMetadata
	if len(m.AIMetadata) > 0 {
		meta = &domain.AIMetadata{}
		if err := json.Unmarshal(m.AIMetadata, meta); err != nil {
			return domain.Listing{}, fmt.Errorf("unmarshal ai metadata: %w", err)
		}
	}
	return domain.Listing{
		ID:          m.ID,
		SellerID:    m.SellerID,
		Title:       m.Title,
		Description: m.Description,
		Price:       m.Price,
		Condition:   domain.Condition(m.Condition),
		CategoryID:  m.CategoryID,
		Location:    m.Location,
		Images:      images,
		AIGenerated: m.AIGenerated,
		AIMetadata:  meta,
		Views:       m.Views,
		Status:      domain.ListingStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
