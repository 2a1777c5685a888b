package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken("user-1", true)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.Staff)

	_, err = NewJWTManager("other", time.Minute).ParseAndValidate(token)
	assert.Error(t, err)

	expired, err := NewJWTManager("secret", -time.Minute).GenerateAccessToken("user-1", false)
	require.NoError(t, err)
	_, err = m.ParseAndValidate(expired)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("secret", time.Minute)

	r := gin.New()
	r.GET("/me", AuthRequired(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "staff": IsStaff(c)})
	})
	r.GET("/staff", AuthRequired(m), RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	customer, err := m.GenerateAccessToken("user-1", false)
	require.NoError(t, err)
	staff, err := m.GenerateAccessToken("staff-1", true)
	require.NoError(t, err)

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "garbage").Code)

	w := do("/me", customer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"user-1","staff":false}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/staff", customer).Code)
	assert.Equal(t, http.StatusNoContent, do("/staff", staff).Code)
}
