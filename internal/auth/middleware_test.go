package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/assetdesk/internal/database"
	"github.com/assetdesk/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "auth.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })

	a, err := NewAuthenticator(db, "secret", time.Hour)
	require.NoError(t, err)
	return a, db
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(nil, "", time.Hour)
	assert.Error(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	a, db := newTestAuthenticator(t)

	_, err := a.EnsureAdmin("admin", "")
	assert.Error(t, err, "a password is needed for the first admin")

	created, err := a.EnsureAdmin("admin", "pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = a.EnsureAdmin("admin", "other")
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = a.Login("admin", "pw")
	assert.NoError(t, err)
	_, err = a.Login("admin", "other")
	assert.Error(t, err)
	_, err = a.Login("ghost", "pw")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, db := newTestAuthenticator(t)

	active := models.User{Username: "tech", Role: models.RoleUser, IsActive: true}
	require.NoError(t, active.SetPassword("pw"))
	require.NoError(t, db.Create(&active).Error)
	inactive := models.User{Username: "former", Role: models.RoleUser, IsActive: true}
	require.NoError(t, inactive.SetPassword("pw"))
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	router := gin.New()
	router.Use(a.Middleware())
	router.GET("/any", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("role")) })
	router.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/runs", RequirePermission("view_runs"), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/schedule", RequirePermission("delete_schedules"), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	token, err := a.GenerateToken(&active)
	require.NoError(t, err)

	w := call(http.MethodGet, "/any", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user", w.Body.String())

	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/admin", token).Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/runs", token).Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodDelete, "/schedule", token).Code)
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/any", "").Code)

	other, err := NewAuthenticator(db, "different-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.GenerateToken(&active)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/any", forged).Code)

	inactiveToken, err := a.GenerateToken(&inactive)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/any", inactiveToken).Code)
}
