package security_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusfound/board-service/internal/config"
	"github.com/campusfound/board-service/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func authRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	resolver := security.NewTokenResolver(cfg)
	router.GET("/v1/whoami", security.AuthMiddleware(resolver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": security.GetUserID(c),
			"email":  security.GetUserEmail(c),
		})
	})
	return router
}

func doGet(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	router := authRouter(&cfg)

	w := doGet(router, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_NonBearerHeader(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	router := authRouter(&cfg)

	w := doGet(router, "Basic YWxpY2U6cHc=")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_TestingModeTokenIsUserID(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	router := authRouter(&cfg)

	w := doGet(router, "Bearer alice")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"userId":"alice"`)
}

func TestAuthMiddleware_APIKeyResolvesUser(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKeys = map[string]string{"secret-key": "alice"}
	router := authRouter(&cfg)

	w := doGet(router, "Bearer secret-key")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"userId":"alice"`)
}

func TestAuthMiddleware_UnknownTokenInProdMode(t *testing.T) {
	cfg := config.DefaultConfig()
	router := authRouter(&cfg)

	w := doGet(router, "Bearer anything")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenResolver_ResolveOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.APIKeys = map[string]string{"secret-key": "alice"}
	resolver := security.NewTokenResolver(&cfg)

	// API keys take precedence over testing-mode fallback.
	id, err := resolver.Resolve(context.Background(), "secret-key")
	require.NoError(t, err)
	require.Equal(t, "alice", id.UserID)

	id, err = resolver.Resolve(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", id.UserID)
}
