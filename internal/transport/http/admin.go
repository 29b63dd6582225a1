package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
)

// AdminConfig holds the single staff credential and token settings.
type AdminConfig struct {
	PasswordHash string
	JWTSecret    []byte
	TokenTTL     time.Duration
}

// AdminHandler serves staff login and the application listing.
type AdminHandler struct {
	service *app.QuizService
	cfg     AdminConfig
	now     func() time.Time
	log     *slog.Logger
}

func NewAdminHandler(service *app.QuizService, cfg AdminConfig, logger *slog.Logger) *AdminHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{service: service, cfg: cfg, now: time.Now, log: logger}
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/applications", h.listApplications)
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "password is required"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)); err != nil {
		h.log.Warn("admin login rejected", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid password"})
		return
	}

	now := h.now()
	exp := now.Add(h.cfg.TokenTTL)
	token, err := h.issueToken(now, exp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate token"})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

func (h *AdminHandler) issueToken(now, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.cfg.JWTSecret)
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return h.cfg.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(h.now))
		if err != nil || claims.Subject != "admin" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) listApplications(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quiz")
	if quizID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quiz is required"})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	records, err := h.service.Records(r.Context(), quizID, limit)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, err, nil)
			return
		}
		h.log.Error("list applications", "quiz", quizID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not list applications"})
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": quizID, "applications": records})
}
