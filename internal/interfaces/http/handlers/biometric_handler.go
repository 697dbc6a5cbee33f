package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type biometricService interface {
	RegisterOptions(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.BiometricOptions, error)
	RegisterVerify(ctx context.Context, userID uuid.UUID, input *entities.BiometricRegisterInput, ip string) (*entities.AuthResponse, error)
	LoginOptions(ctx context.Context, userID uuid.UUID, deviceID, trustToken string) (*entities.BiometricOptions, error)
	LoginVerify(ctx context.Context, input *entities.BiometricLoginInput, ip string) (*entities.AuthResponse, error)
	RevokeDevice(ctx context.Context, userID uuid.UUID, deviceID, ip string) error
}

// BiometricHandler serves device enrolment and trust-token login.
type BiometricHandler struct {
	biometric biometricService
}

func NewBiometricHandler(biometric *usecases.BiometricUsecase) *BiometricHandler {
	return &BiometricHandler{biometric: biometric}
}

type deviceRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

type biometricLoginOptionsRequest struct {
	UserID     uuid.UUID `json:"userId" binding:"required"`
	DeviceID   string    `json:"deviceId" binding:"required"`
	TrustToken string    `json:"trustToken" binding:"required"`
}

// RegisterOptions issues an enrolment challenge
// POST /api/v1/auth/biometric/register/options
func (h *BiometricHandler) RegisterOptions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req deviceRequest
	if !bindJSON(c, &req) {
		return
	}

	opts, err := h.biometric.RegisterOptions(c.Request.Context(), userID, req.DeviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, opts)
}

// RegisterVerify stores the device key and returns a trust token
// POST /api/v1/auth/biometric/register/verify
func (h *BiometricHandler) RegisterVerify(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.BiometricRegisterInput
	if !bindJSON(c, &input) {
		return
	}

	res, err := h.biometric.RegisterVerify(c.Request.Context(), userID, &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// LoginOptions issues a login challenge for a trusted device
// POST /api/v1/auth/biometric/login/options
func (h *BiometricHandler) LoginOptions(c *gin.Context) {
	var req biometricLoginOptionsRequest
	if !bindJSON(c, &req) {
		return
	}

	opts, err := h.biometric.LoginOptions(c.Request.Context(), req.UserID, req.DeviceID, req.TrustToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, opts)
}

// LoginVerify checks the signed challenge and issues tokens
// POST /api/v1/auth/biometric/login/verify
func (h *BiometricHandler) LoginVerify(c *gin.Context) {
	var input entities.BiometricLoginInput
	if !bindJSON(c, &input) {
		return
	}

	res, err := h.biometric.LoginVerify(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// RevokeDevice drops the device's trust token and key
// DELETE /api/v1/auth/trust-tokens/:deviceId
func (h *BiometricHandler) RevokeDevice(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.biometric.RevokeDevice(c.Request.Context(), userID, c.Param("deviceId"), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
