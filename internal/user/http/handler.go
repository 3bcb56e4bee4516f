package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/user"
)

type UserHandler struct {
	userService user.Service
	jwtManager  *auth.JWTManager
	sessions    auth.SessionStore
}

func NewHandler(userService user.Service, jwtManager *auth.JWTManager, sessions auth.SessionStore) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtManager:  jwtManager,
		sessions:    sessions,
	}
}

// Register creates a new account. The role is never taken from the request.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	u, err := h.userService.Register(c.Request.Context(), user.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, MeResponse{User: NewUserResponse(u)})
}

// Login authenticates a user using email and password.
// On success, it returns a JWT access token and the user profile.
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	ctx := c.Request.Context()

	u, err := h.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, tokenID, err := h.jwtManager.GenerateAccessToken(u.Identity())
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.sessions.Save(ctx, tokenID, u.ID, h.jwtManager.TTL()); err != nil {
		slog.ErrorContext(ctx, "save session failed", "user_id", u.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{Error: "session store unavailable", Retryable: true})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.jwtManager.TTL().Seconds()),
		User:        NewUserResponse(u),
	})
}

// Logout revokes the session of the presented token.
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.sessions.Revoke(c.Request.Context(), auth.GetSessionID(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me retrieves the profile of the currently authenticated user.
func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.userService.GetByID(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{User: NewUserResponse(u)})
}
