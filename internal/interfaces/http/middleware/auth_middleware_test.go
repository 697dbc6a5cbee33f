package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/pkg/jwt"
)

func newTestJWT() *jwt.JWTService {
	return jwt.NewJWTService("middleware-secret", "walletcore-test", time.Minute, time.Hour)
}

func protectedRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		id, ok := GetUserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "staff": IsStaff(c)})
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	svc := newTestJWT()
	r := protectedRouter(AuthMiddleware(svc))
	userID := uuid.New()
	pair, err := svc.GenerateTokenPair(userID, string(entities.UserRoleClient))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(AuthorizationHeader, tc.header)
			}
			w := serve(r, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthorizationHeader, "Bearer "+pair.AccessToken)
	var body struct {
		ID    uuid.UUID `json:"id"`
		Role  string    `json:"role"`
		Staff bool      `json:"staff"`
	}
	require.NoError(t, json.Unmarshal(serve(r, req).Body.Bytes(), &body))
	assert.Equal(t, userID, body.ID)
	assert.Equal(t, "client", body.Role)
	assert.False(t, body.Staff)
}

func TestDualAuthMiddleware_QueryToken(t *testing.T) {
	svc := newTestJWT()
	r := protectedRouter(DualAuthMiddleware(svc))
	pair, err := svc.GenerateTokenPair(uuid.New(), string(entities.UserRoleSupport))
	require.NoError(t, err)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+pair.AccessToken, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"staff":true`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me?token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me?token=bad", nil)
	req.Header.Set(AuthorizationHeader, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, serve(r, req).Code, "header wins over the query")
}

func TestRequireRoleAndStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				SetIdentity(c, uuid.New(), role)
			}
			c.Next()
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	cases := []struct {
		role   string
		mw     gin.HandlerFunc
		status int
	}{
		{"vendor", RequireRole(entities.UserRoleVendor), http.StatusNoContent},
		{"client", RequireRole(entities.UserRoleVendor), http.StatusForbidden},
		{"", RequireRole(entities.UserRoleVendor), http.StatusUnauthorized},
		{"admin", RequireStaff(), http.StatusNoContent},
		{"staff", RequireStaff(), http.StatusNoContent},
		{"editor", RequireStaff(), http.StatusForbidden},
		{"", RequireStaff(), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", withRole(tc.role), tc.mw, ok)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tc.status, w.Code, "%s", tc.role)
	}
}
