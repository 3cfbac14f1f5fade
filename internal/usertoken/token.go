package usertoken

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "quicklist-api"
	defaultAudience = "quicklist-clients"
	defaultTTL      = 7 * 24 * time.Hour
	defaultLeeway   = 30 * time.Second
)

// AnonymousUserID is the placeholder identity substituted when a request
// carries no valid bearer token and anonymous fallback is enabled. Preserved
// from the original deployment; auditable via the aiGenerated/seller fields.
const AnonymousUserID = "00000000-0000-0000-0000-000000000001"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("token secret required")
)

// Config configures identity token issuance and verification.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration

	// AllowAnonymous enables the AnonymousFallbackIdentity policy: requests
	// with a missing or invalid token resolve to AnonymousUserID rather than
	// being rejected.
	AllowAnonymous bool
}

// Issuer mints and validates HS256 identity tokens.
type Issuer struct {
	secret         []byte
	issuer         string
	audience       string
	ttl            time.Duration
	leeway         time.Duration
	allowAnonymous bool
}

// New creates a token issuer/verifier from config, applying defaults.
func New(cfg Config) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Issuer{
		secret:         []byte(secret),
		issuer:         issuer,
		audience:       audience,
		ttl:            ttl,
		leeway:         leeway,
		allowAnonymous: cfg.AllowAnonymous,
	}, nil
}

// Mint issues a signed token whose subject is the user ID.
func (i *Issuer) Mint(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// VerifySubject validates the token and returns the subject user ID.
func (i *Issuer) VerifySubject(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithLeeway(i.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

// Resolve maps an optional bearer token to a user ID. With anonymous fallback
// enabled, missing or invalid tokens resolve to AnonymousUserID; otherwise
// they fail with ErrInvalidToken.
func (i *Issuer) Resolve(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if i.allowAnonymous {
			return AnonymousUserID, nil
		}
		return "", ErrInvalidToken
	}
	subject, err := i.VerifySubject(token)
	if err != nil {
		if i.allowAnonymous {
			return AnonymousUserID, nil
		}
		return "", err
	}
	return subject, nil
}
