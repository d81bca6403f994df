package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"task-reminder/backend/internal/handlers"
	"task-reminder/backend/internal/middleware"
	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "test-secret"

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	authSvc := services.NewAuthService(testJWTSecret, time.Hour, 4)
	h := handlers.NewAuthHandler(db, authSvc)
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)

	// One protected probe route to exercise the issued token.
	router.GET("/me", middleware.AuthMiddleware(testJWTSecret), func(c *gin.Context) {
		id, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return router
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	router := newAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"username": "frida",
		"email":    "frida@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/login", map[string]string{
		"username": "frida",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	probe := httptest.NewRecorder()
	router.ServeHTTP(probe, req)
	assert.Equal(t, http.StatusOK, probe.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	router := newAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"username": "frida",
		"email":    "frida@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/login", map[string]string{
		"username": "frida",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	router := newAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"username": "frida",
		"email":    "frida@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"username": "frida",
		"email":    "other@example.com",
		"password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	router := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
