package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/jwt"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

const minPasswordLength = 8

// AuthUsecase handles authentication business logic
type AuthUsecase struct {
	uow          repositories.UnitOfWork
	userRepo     repositories.UserRepository
	jwtService   *jwt.JWTService
	otp          OTPService
	loginLimiter AttemptLimiter
	notifier     Notifier
	audit        *AuditUsecase
	google       GoogleVerifier
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(
	uow repositories.UnitOfWork,
	userRepo repositories.UserRepository,
	jwtService *jwt.JWTService,
	otp OTPService,
	loginLimiter AttemptLimiter,
	notifier Notifier,
	audit *AuditUsecase,
	google GoogleVerifier,
) *AuthUsecase {
	return &AuthUsecase{
		uow:          uow,
		userRepo:     userRepo,
		jwtService:   jwtService,
		otp:          otp,
		loginLimiter: loginLimiter,
		notifier:     notifier,
		audit:        audit,
		google:       google,
	}
}

// Register creates an unverified account keyed by exactly one of email or
// phone and sends an activation code to it.
func (u *AuthUsecase) Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	phone := strings.TrimSpace(input.Phone)
	if (email == "") == (phone == "") {
		return nil, domainerrors.Validation("exactly one of email or phone is required", map[string]string{
			"email": "provide email or phone, not both",
		})
	}
	if len(input.Password) < minPasswordLength {
		return nil, domainerrors.Validation("password too short", map[string]string{"password": "at least 8 characters"})
	}
	role := input.Role
	if role == "" {
		role = entities.UserRoleClient
	}
	if role != entities.UserRoleClient && role != entities.UserRoleVendor {
		return nil, domainerrors.Validation("invalid role", map[string]string{"role": "client or vendor"})
	}

	if err := u.ensureUnique(ctx, email, phone); err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	user := &entities.User{
		ID:           utils.GenerateUUIDv7(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		AuthProvider: entities.AuthProviderLocal,
		PushEnabled:  true,
		InAppEnabled: true,
		EmailEnabled: true,
		SMSEnabled:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if email != "" {
		user.Email = null.StringFrom(email)
	} else {
		user.Phone = null.StringFrom(phone)
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.userRepo.Create(txCtx, user); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyExists) {
				return domainerrors.Conflict("account already exists")
			}
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "auth.registered",
			Category:     entities.AuditCategoryAuth,
			ActorID:      &user.ID,
			ActorEmail:   user.Contact(),
			IP:           ip,
			Action:       "create",
			ResourceType: "user",
			ResourceID:   user.ID.String(),
			Request:      map[string]interface{}{"email": email, "phone": phone, "role": string(role)},
		})
	})
	if err != nil {
		return nil, err
	}

	if err := u.sendOTP(ctx, user, OTPPurposeActivation); err != nil {
		logger.Warn(ctx, "Activation code not sent", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return user, nil
}

func (u *AuthUsecase) ensureUnique(ctx context.Context, email, phone string) error {
	var err error
	if email != "" {
		_, err = u.userRepo.GetByEmail(ctx, email)
	} else {
		_, err = u.userRepo.GetByPhone(ctx, phone)
	}
	if err == nil {
		return domainerrors.Conflict("account already exists")
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	return nil
}

// sendOTP issues a code and hands it to the notifier. The code only travels
// in the delivery context, never in the stored notification.
func (u *AuthUsecase) sendOTP(ctx context.Context, user *entities.User, purpose string) error {
	code, err := u.otp.Generate(ctx, user.ID.String(), purpose)
	if err != nil {
		return err
	}
	channel := entities.ChannelEmail
	if !user.Email.Valid {
		channel = entities.ChannelSMS
	}
	_, err = u.notifier.Notify(ctx, &entities.NotifyInput{
		UserID:   user.ID,
		Type:     entities.NotificationOTPCode,
		Priority: entities.PriorityHigh,
		Title:    "Your verification code",
		Body:     "Use the code we sent to continue.",
		Channels: []entities.Channel{channel},
		Context: map[string]interface{}{
			"code":       code,
			"purpose":    purpose,
			"expires_in": int(u.otp.TTL().Seconds()),
		},
	})
	return err
}

// Login checks credentials. Failures count against the client IP and block
// it once the limit is reached.
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error) {
	subject := "ip:" + ip
	blocked, retryAfter, err := u.loginLimiter.Blocked(ctx, subject)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domainerrors.RateLimited("too many failed login attempts", retryAfter)
	}

	user, err := u.findByIdentifier(ctx, input.Identifier)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !crypto.CheckPassword(input.Password, user.PasswordHash) {
		if _, err := u.loginLimiter.RecordFailure(ctx, subject); err != nil {
			logger.Warn(ctx, "Login failure not counted", zap.Error(err))
		}
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "auth.login_failed",
			Category:     entities.AuditCategoryAuth,
			Severity:     entities.SeverityWarning,
			IP:           ip,
			Action:       "login",
			ResourceType: "user",
			Request:      map[string]interface{}{"identifier": input.Identifier},
		})
		return nil, domainerrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domainerrors.Forbidden("account disabled")
	}
	if !user.IsVerified {
		return nil, domainerrors.ErrAccountNotVerified
	}
	if err := u.loginLimiter.Reset(ctx, subject); err != nil {
		logger.Warn(ctx, "Login limiter reset failed", zap.Error(err))
	}
	return u.issue(ctx, user, ip, "auth.login")
}

func (u *AuthUsecase) findByIdentifier(ctx context.Context, identifier string) (*entities.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return u.userRepo.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return u.userRepo.GetByPhone(ctx, identifier)
}

func (u *AuthUsecase) issue(ctx context.Context, user *entities.User, ip, event string) (*entities.AuthResponse, error) {
	user.LastLoginAt = null.TimeFrom(nowFunc())
	user.UpdatedAt = nowFunc()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	pair, err := u.jwtService.GenerateTokenPair(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	u.audit.RecordSafe(ctx, AuditEntry{
		EventType:    event,
		Category:     entities.AuditCategoryAuth,
		ActorID:      &user.ID,
		ActorEmail:   user.Contact(),
		IP:           ip,
		Action:       "login",
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	return &entities.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	}, nil
}

// VerifyOTP consumes a code. An activation code verifies the account and
// signs the user in.
func (u *AuthUsecase) VerifyOTP(ctx context.Context, input *entities.VerifyOTPInput, ip string) (*entities.AuthResponse, error) {
	purpose := input.Purpose
	if purpose == "" {
		purpose = OTPPurposeActivation
	}
	if !ValidOTPPurpose(purpose) {
		return nil, domainerrors.Validation("invalid purpose", map[string]string{"purpose": "unknown otp purpose"})
	}
	user, err := u.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := u.otp.Verify(ctx, user.ID.String(), purpose, strings.TrimSpace(input.Code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.Unauthorized("invalid or expired code")
	}

	if purpose == OTPPurposeActivation && !user.IsVerified {
		user.IsVerified = true
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "auth.verified",
			Category:     entities.AuditCategoryAuth,
			ActorID:      &user.ID,
			IP:           ip,
			Action:       "update",
			ResourceType: "user",
			ResourceID:   user.ID.String(),
			OldValues:    map[string]interface{}{"is_verified": false},
			NewValues:    map[string]interface{}{"is_verified": true},
		})
		if _, err := u.notifier.Notify(ctx, &entities.NotifyInput{
			UserID: user.ID,
			Type:   entities.NotificationAccountCreated,
			Title:  "Welcome",
			Body:   "Your account is ready.",
		}); err != nil {
			logger.Warn(ctx, "Welcome notification failed", zap.Error(err))
		}
	}
	if purpose != OTPPurposeActivation && purpose != OTPPurposeLogin {
		return &entities.AuthResponse{User: user}, nil
	}
	return u.issue(ctx, user, ip, "auth.otp_login")
}

// ResendOTP issues a fresh code for purpose, replacing any pending one.
func (u *AuthUsecase) ResendOTP(ctx context.Context, userID uuid.UUID, purpose string) error {
	if purpose == "" {
		purpose = OTPPurposeActivation
	}
	if !ValidOTPPurpose(purpose) {
		return domainerrors.Validation("invalid purpose", map[string]string{"purpose": "unknown otp purpose"})
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if purpose == OTPPurposeActivation && user.IsVerified {
		return domainerrors.Conflict("account already verified")
	}
	return u.sendOTP(ctx, user, purpose)
}

// Refresh exchanges a refresh token for a new pair.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := u.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid refresh token")
	}
	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid refresh token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domainerrors.Forbidden("account disabled")
	}
	return u.jwtService.GenerateTokenPair(user.ID, string(user.Role))
}

// GoogleLogin signs in with a Google ID token, creating a verified account
// on first use.
func (u *AuthUsecase) GoogleLogin(ctx context.Context, idToken, ip string) (*entities.AuthResponse, error) {
	if u.google == nil {
		return nil, domainerrors.BadRequest("google sign-in is not configured")
	}
	claims, err := u.google.Verify(ctx, idToken)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid google token")
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, domainerrors.Unauthorized("google account email not verified")
	}
	email := strings.ToLower(claims.Email)
	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}
	if user == nil {
		now := nowFunc()
		user = &entities.User{
			ID:           utils.GenerateUUIDv7(),
			Email:        null.StringFrom(email),
			FirstName:    claims.GivenName,
			LastName:     claims.FamilyName,
			Role:         entities.UserRoleClient,
			IsVerified:   true,
			IsActive:     true,
			AuthProvider: entities.AuthProviderGoogle,
			PushEnabled:  true,
			InAppEnabled: true,
			EmailEnabled: true,
			SMSEnabled:   true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := u.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "auth.registered",
			Category:     entities.AuditCategoryAuth,
			ActorID:      &user.ID,
			ActorEmail:   email,
			IP:           ip,
			Action:       "create",
			ResourceType: "user",
			ResourceID:   user.ID.String(),
			Request:      map[string]interface{}{"provider": string(entities.AuthProviderGoogle)},
		})
	}
	if !user.IsActive {
		return nil, domainerrors.Forbidden("account disabled")
	}
	if !user.IsVerified {
		user.IsVerified = true
	}
	return u.issue(ctx, user, ip, "auth.google_login")
}

// GetUserByID gets a user by ID
func (u *AuthUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return u.userRepo.GetByID(ctx, id)
}
