package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/medibook/medibook/libs/auth"
	"github.com/medibook/medibook/libs/events"
	"github.com/medibook/medibook/services/auth-service/internal/storage"
)

const sessionTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	users        storage.Users
	publisher    events.Publisher
	logger       *slog.Logger
	jwtSecret    string
	secureCookie bool
}

func NewAuthHandler(users storage.Users, publisher events.Publisher, logger *slog.Logger, jwtSecret string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		publisher:    publisher,
		logger:       logger,
		jwtSecret:    jwtSecret,
		secureCookie: secureCookie,
	}
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userProfile is the public view of an account, never carrying the
// password hash.
type userProfile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

func profileOf(user storage.User) userProfile {
	return userProfile{
		ID:             user.ID,
		Email:          user.Email,
		Role:           user.Role,
		Name:           user.Name,
		Specialization: user.Specialization,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "All fields required")
		return
	}
	role := req.Role
	if role == "" {
		role = storage.RolePatient
	}
	if role != storage.RolePatient && role != storage.RoleDoctor {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := storage.User{
		ID:             uuid.NewString(),
		Email:          req.Email,
		PasswordHash:   hash,
		Role:           role,
		Name:           req.Name,
		Specialization: strings.TrimSpace(req.Specialization),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("create user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	// Best-effort: a broker outage must not fail the registration.
	if err := h.publisher.Publish(r.Context(), events.TopicUserRegistered, events.UserRegistered{
		ID:             user.ID,
		Email:          user.Email,
		Role:           user.Role,
		Name:           user.Name,
		Specialization: user.Specialization,
	}); err != nil {
		h.logger.Warn("user.registered publish failed", "err", err, "user_id", user.ID)
	}

	if err := h.setSessionCookie(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": profileOf(user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("lookup user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.setSessionCookie(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    profileOf(user),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(r, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.Sub)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("lookup user failed", "err", err, "user_id", claims.Sub)
		writeError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profileOf(user)})
}

// GetUser serves public profiles; the appointment service resolves doctor
// names through it, so it takes no auth.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("lookup user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(user))
}

func (h *AuthHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.ClaimsFromRequest(r, h.jwtSecret); err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	doctors, err := h.users.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("list doctors failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load doctors")
		return
	}
	list := []userProfile{}
	for _, doctor := range doctors {
		list = append(list, profileOf(doctor))
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, user storage.User) error {
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   user.ID,
		Role:  user.Role,
		Name:  user.Name,
		Email: user.Email,
		Iat:   now.Unix(),
		Exp:   now.Add(sessionTTL).Unix(),
	}, h.jwtSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
