package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/auth"
	"botdesk/internal/repository/db"
	userService "botdesk/internal/service/user"
	"net/http"
	"time"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *db.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// AuthHandlers serves registration and session endpoints
type AuthHandlers struct {
	tokens      *auth.TokenManager
	userService *userService.UserService
}

func NewAuthHandlers(config *app.Config, tokens *auth.TokenManager) *AuthHandlers {
	return &AuthHandlers{
		tokens:      tokens,
		userService: userService.NewUserService(config, tokens),
	}
}

// RegisterHandler creates an account
func (h *AuthHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.userService.Register(req.Name, req.Email, req.Password)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// LoginHandler checks credentials and sets the session cookie
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, _, err := h.userService.Login(req.Email, req.Password)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.tokens.SessionCookie(token))
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token})
}

// LogoutHandler clears the session cookie
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.tokens.ClearedSessionCookie())
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
