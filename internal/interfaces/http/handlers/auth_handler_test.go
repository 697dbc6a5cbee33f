package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/usecases"
	"walletcore.backend/pkg/jwt"
)

type authServiceStub struct {
	registerFn  func(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.User, error)
	loginFn     func(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error)
	verifyFn    func(ctx context.Context, input *entities.VerifyOTPInput, ip string) (*entities.AuthResponse, error)
	resendFn    func(ctx context.Context, userID uuid.UUID, purpose string) error
	refreshFn   func(ctx context.Context, refreshToken string) (*jwt.TokenPair, error)
	googleFn    func(ctx context.Context, idToken, ip string) (*entities.AuthResponse, error)
	getUserByFn func(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

func (s authServiceStub) Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.User, error) {
	return s.registerFn(ctx, input, ip)
}
func (s authServiceStub) Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error) {
	return s.loginFn(ctx, input, ip)
}
func (s authServiceStub) VerifyOTP(ctx context.Context, input *entities.VerifyOTPInput, ip string) (*entities.AuthResponse, error) {
	return s.verifyFn(ctx, input, ip)
}
func (s authServiceStub) ResendOTP(ctx context.Context, userID uuid.UUID, purpose string) error {
	return s.resendFn(ctx, userID, purpose)
}
func (s authServiceStub) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	return s.refreshFn(ctx, refreshToken)
}
func (s authServiceStub) GoogleLogin(ctx context.Context, idToken, ip string) (*entities.AuthResponse, error) {
	return s.googleFn(ctx, idToken, ip)
}
func (s authServiceStub) GetUserByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return s.getUserByFn(ctx, id)
}

type preferenceServiceStub struct {
	updateFn func(ctx context.Context, userID uuid.UUID, input *entities.NotificationPreferencesInput) (*entities.User, error)
}

func (s preferenceServiceStub) UpdatePreferences(ctx context.Context, userID uuid.UUID, input *entities.NotificationPreferencesInput) (*entities.User, error) {
	return s.updateFn(ctx, userID, input)
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	userID := uuid.New()
	h := &AuthHandler{authUsecase: authServiceStub{
		registerFn: func(_ context.Context, input *entities.RegisterInput, ip string) (*entities.User, error) {
			if input.Email == "taken@example.com" {
				return nil, domainerrors.ErrAlreadyExists
			}
			assert.NotEmpty(t, ip)
			return &entities.User{ID: userID, Email: null.StringFrom(input.Email), Role: entities.UserRoleClient}, nil
		},
		loginFn: func(_ context.Context, input *entities.LoginInput, _ string) (*entities.AuthResponse, error) {
			switch input.Identifier {
			case "locked@example.com":
				return nil, domainerrors.RateLimited("too many attempts", 90*time.Second)
			case "new@example.com":
				return nil, domainerrors.ErrAccountNotVerified
			}
			return &entities.AuthResponse{AccessToken: "access", RefreshToken: "refresh", User: &entities.User{ID: userID}}, nil
		},
	}}

	rec := do(t, caller{}, http.MethodPost, "/register", "/register",
		map[string]string{"email": "ada@example.com", "password": "correct-horse"}, h.Register)
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, userID.String(), user["id"])
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = do(t, caller{}, http.MethodPost, "/register", "/register",
		map[string]string{"email": "taken@example.com", "password": "correct-horse"}, h.Register)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, caller{}, http.MethodPost, "/register", "/register", map[string]string{"email": "a@b.co", "password": "short"}, h.Register)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domainerrors.CodeBadRequest, errorCode(t, rec))

	rec = do(t, caller{}, http.MethodPost, "/login", "/login", map[string]string{"identifier": "ada@example.com", "password": "x"}, h.Login)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access", decode(t, rec)["accessToken"])

	rec = do(t, caller{}, http.MethodPost, "/login", "/login", map[string]string{"identifier": "locked@example.com", "password": "x"}, h.Login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))

	rec = do(t, caller{}, http.MethodPost, "/login", "/login", map[string]string{"identifier": "new@example.com", "password": "x"}, h.Login)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, caller{}, http.MethodPost, "/login", "/login", "{", h.Login)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_OTPAndRefresh(t *testing.T) {
	userID := uuid.New()
	var resentPurpose string
	h := &AuthHandler{authUsecase: authServiceStub{
		verifyFn: func(_ context.Context, input *entities.VerifyOTPInput, _ string) (*entities.AuthResponse, error) {
			if input.Code != "123456" {
				return nil, domainerrors.ErrUnauthorized
			}
			return &entities.AuthResponse{AccessToken: "a", User: &entities.User{ID: input.UserID, IsVerified: true}}, nil
		},
		resendFn: func(_ context.Context, id uuid.UUID, purpose string) error {
			assert.Equal(t, userID, id)
			resentPurpose = purpose
			return nil
		},
		refreshFn: func(_ context.Context, token string) (*jwt.TokenPair, error) {
			if token != "good" {
				return nil, jwt.ErrInvalidToken
			}
			return &jwt.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}}

	rec := do(t, caller{}, http.MethodPost, "/verify", "/verify", map[string]string{"userId": userID.String(), "code": "123456"}, h.VerifyOTP)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, caller{}, http.MethodPost, "/verify", "/verify", map[string]string{"userId": userID.String(), "code": "000000"}, h.VerifyOTP)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, caller{}, http.MethodPost, "/resend", "/resend", map[string]string{"userId": userID.String()}, h.ResendOTP)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecases.OTPPurposeActivation, resentPurpose)

	rec = do(t, caller{}, http.MethodPost, "/refresh", "/refresh", map[string]string{"refreshToken": "good"}, h.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new-access")

	rec = do(t, caller{}, http.MethodPost, "/refresh", "/refresh", map[string]string{"refreshToken": "bad"}, h.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_MeAndPreferences(t *testing.T) {
	userID := uuid.New()
	h := &AuthHandler{
		authUsecase: authServiceStub{
			getUserByFn: func(_ context.Context, id uuid.UUID) (*entities.User, error) {
				if id != userID {
					return nil, domainerrors.ErrNotFound
				}
				return &entities.User{ID: id, FirstName: "Ada"}, nil
			},
			googleFn: func(_ context.Context, _, _ string) (*entities.AuthResponse, error) {
				return nil, domainerrors.BadRequest("google sign-in is not configured")
			},
		},
		prefs: preferenceServiceStub{
			updateFn: func(_ context.Context, id uuid.UUID, input *entities.NotificationPreferencesInput) (*entities.User, error) {
				require.NotNil(t, input.PushEnabled)
				return &entities.User{ID: id, PushEnabled: *input.PushEnabled}, nil
			},
		},
	}

	rec := do(t, caller{}, http.MethodGet, "/me", "/me", nil, h.GetMe)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/me", "/me", nil, h.GetMe)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada")

	rec = do(t, client(uuid.New()), http.MethodGet, "/me", "/me", nil, h.GetMe)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, client(userID), http.MethodPut, "/prefs", "/prefs", map[string]bool{"pushEnabled": false}, h.UpdatePreferences)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, caller{}, http.MethodPost, "/google", "/google", map[string]string{"idToken": "x"}, h.GoogleLogin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
