package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id.String()+" "+c.GetString(RoleKey))
	})
	r.GET("/officer", RequireRole(RoleOfficer), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := router()
	user := uuid.New()

	token, err := IssueToken(secret, user, RoleCitizen, time.Hour)
	require.NoError(t, err)

	w := do(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.String()+" citizen", w.Body.String())

	w = do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "NO_AUTH_HEADER")

	forged, err := IssueToken([]byte("other"), user, RoleCitizen, time.Hour)
	require.NoError(t, err)
	w = do(r, "/me", forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	expired, err := IssueToken(secret, user, RoleCitizen, -time.Minute)
	require.NoError(t, err)
	w = do(r, "/me", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestRequireRole(t *testing.T) {
	r := router()

	tests := []struct {
		role string
		want int
	}{
		{RoleCitizen, http.StatusForbidden},
		{RoleOfficer, http.StatusNoContent},
		{RoleAdmin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token, err := IssueToken(secret, uuid.New(), tt.role, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, tt.want, do(r, "/officer", token).Code)
		})
	}
}
