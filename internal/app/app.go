// Package app holds the marketplace core: the AI listing-generation pipeline,
// the conversation flow, category resolution, and the search surface.
package app

import (
	"fmt"
	"strings"
	"time"

	"quicklist/internal/util"
	"quicklist/pkg/ai"
	"quicklist/pkg/auth"
	"quicklist/pkg/domain"
	"quicklist/pkg/imaging"
	"quicklist/pkg/storage"
	"quicklist/pkg/store"
)

const (
	defaultMaxImages     = 5
	defaultMaxImageBytes = 10 << 20
	defaultCallTimeout   = 30 * time.Second
)

// Config wires the process-wide capability handles into the core. Handles are
// built once at startup and injected; the core never constructs its own
// clients.
type Config struct {
	Store      store.Store
	Advisor    ai.ListingAdvisor
	Images     storage.ImageStore
	Normalizer *imaging.Normalizer

	// Deadlines for outbound advisor/storage calls. Zero means the default.
	AdvisorTimeout time.Duration
	StorageTimeout time.Duration

	MaxImages     int
	MaxImageBytes int64
}

// App is the core application service.
type App struct {
	store      store.Store
	advisor    ai.ListingAdvisor
	images     storage.ImageStore
	normalizer *imaging.Normalizer

	advisorTimeout time.Duration
	storageTimeout time.Duration
	maxImages      int
	maxImageBytes  int64
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Advisor == nil {
		return nil, fmt.Errorf("listing advisor required")
	}
	if cfg.Images == nil {
		return nil, fmt.Errorf("image store required")
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = imaging.NewNormalizer()
	}
	advisorTimeout := cfg.AdvisorTimeout
	if advisorTimeout <= 0 {
		advisorTimeout = defaultCallTimeout
	}
	storageTimeout := cfg.StorageTimeout
	if storageTimeout <= 0 {
		storageTimeout = defaultCallTimeout
	}
	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	maxImageBytes := cfg.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &App{
		store:          cfg.Store,
		advisor:        cfg.Advisor,
		images:         cfg.Images,
		normalizer:     normalizer,
		advisorTimeout: advisorTimeout,
		storageTimeout: storageTimeout,
		maxImages:      maxImages,
		maxImageBytes:  maxImageBytes,
	}, nil
}

// Register creates a user account.
func (a *App) Register(email, password, name, phone, location string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, invalidInput("valid email required")
	}
	if len(password) < 6 {
		return domain.User{}, invalidInput("password must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		Location:     strings.TrimSpace(location),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if err == store.ErrDuplicateEmail {
			return domain.User{}, invalidInput("email already registered")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login validates credentials and returns the user.
func (a *App) Login(email, password string) (domain.User, error) {
	user, ok, err := a.store.GetUserByEmail(strings.TrimSpace(email))
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, newError(KindAuthFailure, "invalid credentials", nil)
	}
	return user, nil
}
