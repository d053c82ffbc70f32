package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(issuer *auth.TokenIssuer, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Authenticate(issuer)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(KeyUserID)})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	r := newRouter(issuer)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer garbage").Code)

	other, err := auth.NewTokenIssuer("other", time.Hour).Generate("u1", "bob", models.RoleInspector, nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer "+other).Code)

	tok, err := issuer.Generate("u1", "bob", models.RoleInspector, nil, "")
	require.NoError(t, err)
	w := do(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1"}`, w.Body.String())
}

func TestAuthorizeAndPermissions(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	viewer, _ := issuer.Generate("u1", "v", models.RoleViewer, []string{models.PermTripsRead}, "")
	admin, _ := issuer.Generate("u2", "a", models.RoleAdmin, nil, "")

	adminOnly := newRouter(issuer, Authorize(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, do(adminOnly, "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusOK, do(adminOnly, "Bearer "+admin).Code)

	writers := newRouter(issuer, RequirePermission(models.PermTripsWrite))
	assert.Equal(t, http.StatusForbidden, do(writers, "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusOK, do(writers, "Bearer "+admin).Code, "admin passes every permission")

	readers := newRouter(issuer, RequirePermission(models.PermTripsRead))
	assert.Equal(t, http.StatusOK, do(readers, "Bearer "+viewer).Code)
}

func TestRecovererAndLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	r := gin.New()
	r.Use(RequestLogger(l), Recoverer(l))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), `"status":500`)
}
