package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleClient    UserRole = "client"
	UserRoleVendor    UserRole = "vendor"
	UserRoleStaff     UserRole = "staff"
	UserRoleEditor    UserRole = "editor"
	UserRoleSupport   UserRole = "support"
	UserRoleAssistant UserRole = "assistant"
	UserRoleAdmin     UserRole = "admin"
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleClient, UserRoleVendor, UserRoleStaff, UserRoleEditor,
		UserRoleSupport, UserRoleAssistant, UserRoleAdmin:
		return true
	}
	return false
}

// IsBackOffice reports whether the role may perform staff actions.
func (r UserRole) IsBackOffice() bool {
	switch r {
	case UserRoleStaff, UserRoleSupport, UserRoleAdmin:
		return true
	}
	return false
}

// AuthProvider is how the account authenticates.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// User represents a user entity
type User struct {
	ID                  uuid.UUID    `json:"id"`
	Email               null.String  `json:"email"`
	Phone               null.String  `json:"phone"`
	FirstName           string       `json:"firstName"`
	LastName            string       `json:"lastName"`
	PasswordHash        string       `json:"-"`
	Role                UserRole     `json:"role"`
	IsVerified          bool         `json:"isVerified"`
	IsActive            bool         `json:"isActive"`
	IsStaff             bool         `json:"isStaff"`
	AuthProvider        AuthProvider `json:"authProvider"`
	KYCLevel            int          `json:"kycLevel"`
	PushEnabled         bool         `json:"pushEnabled"`
	InAppEnabled        bool         `json:"inAppEnabled"`
	EmailEnabled        bool         `json:"emailEnabled"`
	SMSEnabled          bool         `json:"smsEnabled"`
	DeviceToken         null.String  `json:"-"`
	TrustToken          null.String  `json:"-"`
	TrustTokenExpiresAt null.Time    `json:"-"`
	LastLoginAt         null.Time    `json:"lastLoginAt"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// FullName joins first and last name, falling back to the contact handle.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Contact()
}

// Contact returns the email if set, otherwise the phone.
func (u *User) Contact() string {
	if u.Email.Valid {
		return u.Email.String
	}
	return u.Phone.String
}

// CanActAsStaff reports whether the user may perform back-office actions.
func (u *User) CanActAsStaff() bool {
	return u.IsStaff || u.Role.IsBackOffice()
}

// RegisterInput represents input for creating a user
type RegisterInput struct {
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Password  string   `json:"password" binding:"required,min=8"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      UserRole `json:"role"`
}

// LoginInput represents input for user login. Identifier is an email or phone.
type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// VerifyOTPInput consumes an OTP for a user and purpose.
type VerifyOTPInput struct {
	UserID  uuid.UUID `json:"userId" binding:"required"`
	Purpose string    `json:"purpose"`
	Code    string    `json:"code" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
	TrustToken   string    `json:"trustToken,omitempty"`
	User         *User     `json:"user"`
}

// NotificationPreferencesInput toggles per-channel delivery.
type NotificationPreferencesInput struct {
	PushEnabled  *bool  `json:"pushEnabled"`
	InAppEnabled *bool  `json:"inAppEnabled"`
	EmailEnabled *bool  `json:"emailEnabled"`
	SMSEnabled   *bool  `json:"smsEnabled"`
	DeviceToken  string `json:"deviceToken"`
}
