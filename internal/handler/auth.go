package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sandipay/auth-service/internal/constants"
	"github.com/sandipay/auth-service/internal/dto"
	apperrors "github.com/sandipay/auth-service/internal/errors"
	"github.com/sandipay/auth-service/internal/service"
	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"github.com/sandipay/auth-service/pkg/logger"
)

type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	userService    *service.UserService
}

func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		userService:    userService,
	}
}

// Register handles account creation
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Register")

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid register request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.userService.Register(ctx, &req)
	if err != nil {
		logger.WarnWithContext(ctx, "Registration failed").
			String("email", req.Email).
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	logger.InfoWithContext(ctx, "User registered").
		String("email", req.Email).
		Uint("user_id", response.User.ID).
		Log()

	c.JSON(http.StatusCreated, response)
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Login")

	var req dto.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid login request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	logger.InfoWithContext(ctx, "User login attempt").
		String("email", req.Email).
		Log()

	response, err := h.authService.Login(ctx, &req)
	if err != nil {
		logger.WarnWithContext(ctx, "Login failed").
			String("email", req.Email).
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	logger.InfoWithContext(ctx, "User logged in successfully").
		String("email", req.Email).
		Uint("user_id", response.User.ID).
		Log()

	c.JSON(http.StatusOK, response)
}

// RefreshToken exchanges a refresh token for a fresh pair
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "RefreshToken")

	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid refresh token request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.sessionService.Rotate(ctx, req.RefreshToken)
	if err != nil {
		logger.WarnWithContext(ctx, "Token refresh failed").
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	logger.InfoWithContext(ctx, "Token refreshed successfully").
		Uint("user_id", response.User.ID).
		Log()

	c.JSON(http.StatusOK, response)
}

// Logout revokes the session named by the refresh token
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Logout")

	var req dto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid logout request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.userService.Logout(ctx, req.RefreshToken); err != nil {
		logger.WarnWithContext(ctx, "Logout failed").
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Logged out successfully"))
}

// LogoutAll revokes every session of the authenticated user
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "LogoutAll")

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse("unauthorized", nil))
		return
	}

	if err := h.userService.LogoutAll(ctx, userID); err != nil {
		logger.ErrorWithContext(ctx, "Logout all failed").
			Uint("user_id", userID).
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Logged out from all devices"))
}

// ChangePassword replaces the password and revokes every session
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ChangePassword")

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse("unauthorized", nil))
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid change password request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.userService.ChangePassword(ctx, userID, &req); err != nil {
		logger.WarnWithContext(ctx, "Password change failed").
			Uint("user_id", userID).
			Err(err).
			Log()
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password changed successfully"))
}

// writeError maps service errors to responses. Every authentication
// failure collapses to the same generic 401 body; which check failed
// is visible only in logs and the audit stream.
func writeError(c *gin.Context, err error) {
	if apperrors.IsAuthFailure(err) {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse("unauthorized", nil))
		return
	}

	status := apperrors.ToHTTPStatus(err)
	c.JSON(status, constants.BuildErrorResponse(apperrors.GetErrorMessage(err), nil))
}

func currentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
