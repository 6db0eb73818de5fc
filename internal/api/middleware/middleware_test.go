package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parkease/internal/domain"
	"parkease/internal/repository/memory"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "admin": id.IsAdmin})
	})
	r.GET("/", handlers...)
	return r
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(AuthorizationHeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	auth := service.NewAuthService(memory.NewStore().Users(), "k", time.Hour)
	mw := NewAuthMiddleware(auth)

	userToken, err := auth.IssueToken(&domain.User{ID: 4, Username: "u", Role: domain.RoleUser})
	require.NoError(t, err)
	adminToken, err := auth.IssueToken(&domain.User{ID: 5, Username: "a", Role: domain.RoleAdmin})
	require.NoError(t, err)

	open := newEngine(mw.Authenticate())
	assert.Equal(t, http.StatusUnauthorized, serve(open, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(open, "Token "+userToken).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(open, "Bearer nope").Code)
	w := serve(open, "Bearer "+userToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":4,"admin":false}`, w.Body.String())

	admins := newEngine(mw.Authenticate(), mw.AuthorizeRole(domain.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(admins, "Bearer "+userToken).Code)
	assert.Equal(t, http.StatusOK, serve(admins, "Bearer "+adminToken).Code)

	noAuth := newEngine(mw.AuthorizeRole(domain.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(noAuth, "").Code)
}

func TestRateLimiter(t *testing.T) {
	limited := newEngine(NewRateLimiter(1).Middleware())
	assert.Equal(t, http.StatusOK, serve(limited, "").Code)
	w := serve(limited, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	unlimited := newEngine(NewRateLimiter(0).Middleware())
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, serve(unlimited, "").Code)
	}
}
