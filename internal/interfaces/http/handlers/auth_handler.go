package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
	"walletcore.backend/pkg/jwt"
)

type authService interface {
	Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.User, error)
	Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error)
	VerifyOTP(ctx context.Context, input *entities.VerifyOTPInput, ip string) (*entities.AuthResponse, error)
	ResendOTP(ctx context.Context, userID uuid.UUID, purpose string) error
	Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error)
	GoogleLogin(ctx context.Context, idToken, ip string) (*entities.AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

type preferenceService interface {
	UpdatePreferences(ctx context.Context, userID uuid.UUID, input *entities.NotificationPreferencesInput) (*entities.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authUsecase authService
	prefs       preferenceService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authUsecase *usecases.AuthUsecase, notifications *usecases.NotificationUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, prefs: notifications}
}

// Register handles user registration. The account stays unverified until the
// emailed or texted code is confirmed.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input entities.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.authUsecase.Register(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Registration successful. Enter the verification code we sent you.",
		"user":    user,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if !bindJSON(c, &input) {
		return
	}

	authResponse, err := h.authUsecase.Login(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authResponse)
}

// VerifyOTP consumes a one-time code and issues tokens
// POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var input entities.VerifyOTPInput
	if !bindJSON(c, &input) {
		return
	}

	authResponse, err := h.authUsecase.VerifyOTP(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authResponse)
}

type resendOTPRequest struct {
	UserID  uuid.UUID `json:"userId" binding:"required"`
	Purpose string    `json:"purpose"`
}

// ResendOTP sends a fresh code
// POST /api/v1/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req resendOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Purpose == "" {
		req.Purpose = usecases.OTPPurposeActivation
	}

	if err := h.authUsecase.ResendOTP(c.Request.Context(), req.UserID, req.Purpose); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Code sent"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken handles token refresh
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokenPair, err := h.authUsecase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, domainerrors.Unauthorized("Invalid refresh token"))
		return
	}
	response.Success(c, http.StatusOK, tokenPair)
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// GoogleLogin exchanges a Google ID token for a session
// POST /api/v1/auth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	authResponse, err := h.authUsecase.GoogleLogin(c.Request.Context(), req.IDToken, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authResponse)
}

// GetMe returns the current user
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.authUsecase.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdatePreferences changes notification channels and the push device token
// PUT /api/v1/auth/me/notification-preferences
func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.NotificationPreferencesInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.prefs.UpdatePreferences(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}
