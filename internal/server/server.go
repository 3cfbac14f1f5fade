// Package server exposes the marketplace HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quicklist/internal/app"
	"quicklist/internal/ratelimit"
	"quicklist/internal/usertoken"
	"quicklist/internal/util"
	"quicklist/pkg/domain"
	"quicklist/pkg/store"
)

// HealthServices reports which backing services were configured at startup.
type HealthServices struct {
	Database bool `json:"database"`
	Storage  bool `json:"storage"`
	Advisor  bool `json:"advisor"`
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Tokens   *usertoken.Issuer
	Services HealthServices

	RedisAddr     string
	RedisPassword string

	SignupRateLimitPerMinute   int
	LoginRateLimitPerMinute    int
	GenerateRateLimitPerMinute int

	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the marketplace backend.
type Server struct {
	app             *app.App
	tokens          *usertoken.Issuer
	services        HealthServices
	mux             *http.ServeMux
	maxUploadBytes  int64
	signupLimiter   *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	generateLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token issuer required")
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	generateLimit := cfg.GenerateRateLimitPerMinute
	if generateLimit <= 0 {
		generateLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "quicklist:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	generateLimiter, err := newLimiter("generate", generateLimit)
	if err != nil {
		return nil, err
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	s := &Server{
		app:             cfg.App,
		tokens:          cfg.Tokens,
		services:        cfg.Services,
		mux:             http.NewServeMux(),
		maxUploadBytes:  maxUploadBytes,
		signupLimiter:   signupLimiter,
		loginLimiter:    loginLimiter,
		generateLimiter: generateLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/users/register", s.handleRegister)
	s.mux.HandleFunc("/api/users/login", s.handleLogin)

	s.mux.HandleFunc("/api/ai/generate-listing", s.handleGenerateListing)

	// Exact pattern wins over the subtree below.
	s.mux.HandleFunc("/api/listings/search", s.handleSearch)
	s.mux.HandleFunc("/api/listings/", s.handleListingByID)

	s.mux.HandleFunc("/api/conversations/start", s.handleStartConversation)
	s.mux.HandleFunc("/api/conversations/", s.handleConversationMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  s.services,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many registration attempts, try again later") {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(req.Email, req.Password, req.Name, req.Phone, req.Location)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.writeAuthSuccess(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts, try again later") {
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.writeAuthSuccess(w, user)
}

func (s *Server) writeAuthSuccess(w http.ResponseWriter, user domain.User) {
	token, err := s.tokens.Mint(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    userPayload{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (s *Server) handleGenerateListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.generateLimiter, "too many generation requests, try again later") {
		return
	}
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one image file is required (field: images)")
		return
	}
	uploads := make([]app.UploadedImage, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable image upload")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable image upload")
			return
		}
		uploads = append(uploads, app.UploadedImage{Data: data})
	}
	opts := app.GenerateOptions{
		Location:  r.FormValue("location"),
		Condition: r.FormValue("condition"),
	}
	res, err := s.app.GenerateListing(r.Context(), callerID, uploads, opts)
	if err != nil {
		slog.Error("generate_listing_failed",
			"error", err,
			"kind", string(app.KindOf(err)),
			"request_id", util.RequestIDFromContext(r.Context()),
		)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"listing":    res.Listing,
		"aiAnalysis": res.Draft,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := store.SearchQuery{
		Text:       strings.TrimSpace(r.URL.Query().Get("q")),
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category")),
		Location:   strings.TrimSpace(r.URL.Query().Get("location")),
	}
	if raw := r.URL.Query().Get("minPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minPrice must be a number")
			return
		}
		query.MinPrice = &v
	}
	if raw := r.URL.Query().Get("maxPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "maxPrice must be a number")
			return
		}
		query.MaxPrice = &v
	}
	listings, err := s.app.SearchListings(query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"listings": listings,
		"count":    len(listings),
	})
}

func (s *Server) handleListingByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/listings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	listing, err := s.app.GetListing(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"listing": listing,
	})
}

type startConversationRequest struct {
	ListingID string `json:"listingId"`
	Message   string `json:"message"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ListingID == "" {
		writeError(w, http.StatusBadRequest, "listingId is required")
		return
	}
	res, err := s.app.StartConversation(r.Context(), callerID, req.ListingID, req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"conversation":   res.Conversation,
		"conversationId": res.Conversation.ID,
		"aiResponse":     res.AIReply,
	})
}

type conversationMessageRequest struct {
	Message  string `json:"message"`
	UserType string `json:"userType"`
}

func (s *Server) handleConversationMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	conversationID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "message" || conversationID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req conversationMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role := domain.SenderRole(strings.ToLower(strings.TrimSpace(req.UserType)))
	reply, aiSpoke, err := s.app.ContinueConversation(r.Context(), callerID, conversationID, req.Message, role)
	if err != nil {
		writeAppError(w, err)
		return
	}
	payload := map[string]any{"success": true}
	if aiSpoke {
		payload["aiResponse"] = reply
	} else {
		payload["aiResponse"] = nil
	}
	writeJSON(w, http.StatusOK, payload)
}

// caller resolves the request identity from an optional bearer token. A
// missing token falls back to the anonymous identity when that policy is
// enabled; otherwise the request is rejected.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, _ := bearerToken(r)
	userID, err := s.tokens.Resolve(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps classified application errors onto HTTP statuses. The
// response always carries the kind so clients can branch without string
// matching.
func writeAppError(w http.ResponseWriter, err error) {
	kind := app.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case app.KindInvalidInput:
		status = http.StatusBadRequest
	case app.KindNormalization:
		status = http.StatusUnprocessableEntity
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindAuthFailure:
		status = http.StatusUnauthorized
	case app.KindTimeout:
		status = http.StatusGatewayTimeout
	case app.KindAdvisorContract, app.KindPartialUpload, app.KindUpstream:
		status = http.StatusBadGateway
	}
	payload := map[string]any{
		"error": err.Error(),
		"kind":  string(kind),
	}
	var appErr *app.Error
	if errors.As(err, &appErr) {
		payload["error"] = appErr.Message
		if kind == app.KindPartialUpload {
			payload["uploadedImages"] = appErr.UploadedURLs
		}
	}
	writeJSON(w, status, payload)
}
