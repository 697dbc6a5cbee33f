package usecases

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

const redacted = "[REDACTED]"

// Keys removed from request snapshots. Matched against the key lowercased
// with separators stripped, exactly or as a prefix/suffix.
var sensitiveKeys = []string{"pin", "password", "cvv", "cardnumber", "otp", "token", "secret"}

// AuditEntry describes one state-changing action.
type AuditEntry struct {
	EventType    string
	Category     entities.AuditCategory
	Severity     entities.AuditSeverity
	ActorID      *uuid.UUID
	ActorEmail   string
	IP           string
	UserAgent    string
	Action       string
	ResourceType string
	ResourceID   string
	Request      map[string]interface{}
	OldValues    map[string]interface{}
	NewValues    map[string]interface{}
}

// AuditUsecase writes the insert-only audit trail.
type AuditUsecase struct {
	repo          repositories.AuditRepository
	retentionDays int
}

// NewAuditUsecase creates a new audit usecase
func NewAuditUsecase(repo repositories.AuditRepository) *AuditUsecase {
	return &AuditUsecase{repo: repo, retentionDays: entities.DefaultAuditRetentionDays}
}

// Record stores an entry. Inside a unit of work the entry commits or rolls
// back with the change it describes.
func (u *AuditUsecase) Record(ctx context.Context, e AuditEntry) error {
	if e.Severity == "" {
		e.Severity = entities.SeverityInfo
	}
	entry := &entities.AuditLog{
		ID:             utils.GenerateUUIDv7(),
		EventType:      e.EventType,
		Category:       e.Category,
		Severity:       e.Severity,
		UserID:         e.ActorID,
		Action:         e.Action,
		ResourceType:   e.ResourceType,
		ResourceID:     e.ResourceID,
		RequestSummary: Sanitize(e.Request),
		OldValues:      Sanitize(e.OldValues),
		NewValues:      Sanitize(e.NewValues),
		RetentionDays:  u.retentionDays,
		CreatedAt:      nowFunc(),
	}
	if e.ActorEmail != "" {
		entry.UserEmail = null.StringFrom(e.ActorEmail)
	}
	if e.IP != "" {
		entry.IPAddress = null.StringFrom(e.IP)
	}
	if e.UserAgent != "" {
		entry.UserAgent = null.StringFrom(e.UserAgent)
	}
	return u.repo.Create(ctx, entry)
}

// RecordSafe is Record for paths where a lost audit row must not fail the caller.
func (u *AuditUsecase) RecordSafe(ctx context.Context, e AuditEntry) {
	if err := u.Record(ctx, e); err != nil {
		logger.Error(ctx, "Failed to write audit entry",
			zap.String("event", e.EventType),
			zap.String("resource_id", e.ResourceID),
			zap.Error(err),
		)
	}
}

// List returns audit entries newest first.
func (u *AuditUsecase) List(ctx context.Context, filter entities.AuditFilter, page, limit int) ([]*entities.AuditLog, int64, error) {
	_, limit, offset := pageOffset(page, limit)
	return u.repo.List(ctx, filter, limit, offset)
}

// Sanitize returns a deep copy of m with secrets replaced.
func Sanitize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Sanitize(val)
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i := range val {
			cp[i] = sanitizeValue(val[i])
		}
		return cp
	case map[string]string:
		cp := make(map[string]interface{}, len(val))
		for k, s := range val {
			cp[k] = s
		}
		return Sanitize(cp)
	}
	return v
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	if k == "code" {
		return true
	}
	// boolean policy flags such as requiresPin or hasPin are not secrets
	if strings.HasPrefix(k, "requires") || strings.HasPrefix(k, "has") {
		return false
	}
	for _, s := range sensitiveKeys {
		if k == s || strings.HasPrefix(k, s) || strings.HasSuffix(k, s) {
			return true
		}
	}
	return false
}
