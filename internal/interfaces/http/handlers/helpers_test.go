package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/middleware"
)

// caller is the identity a test request is made as. The zero value is
// anonymous.
type caller struct {
	id   uuid.UUID
	role entities.UserRole
}

func client(id uuid.UUID) caller { return caller{id: id, role: entities.UserRoleClient} }
func staff(id uuid.UUID) caller  { return caller{id: id, role: entities.UserRoleStaff} }

// do mounts handler on route and serves one request through it.
func do(t *testing.T, as caller, method, route, path string, body interface{}, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if as.id != uuid.Nil {
			middleware.SetIdentity(c, as.id, string(as.role))
		}
		c.Next()
	}, handler)

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, rec)["code"].(string)
	return code
}
