package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userdirectory/internal/auth"
	"userdirectory/internal/cache"
	"userdirectory/internal/db"
	"userdirectory/internal/handler"
	"userdirectory/internal/model"
	"userdirectory/internal/repository"
	"userdirectory/internal/service"
)

// newTestServer wires the full stack over in-memory sqlite and miniredis.
// Register installs prometheus collectors, so it is called once per test binary.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	gormDB, err := db.Open(db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB, false))

	mr := miniredis.RunT(t)
	cacheClient := cache.New(cache.Options{Addr: mr.Addr(), Prefix: "test:"})
	t.Cleanup(func() { _ = cacheClient.Close() })

	repo := repository.NewUserRepository(gormDB)
	jwtService := auth.NewJWTService("router-test-secret")
	tokenStore := auth.NewTokenStore(cacheClient)

	userHandler := handler.NewUserHandler(service.NewUserService(repo, cacheClient, model.NewValidator()))
	authHandler := handler.NewAuthHandler(service.NewAuthService(repo, jwtService, tokenStore))

	e := echo.New()
	Register(e, jwtService, tokenStore, userHandler, authHandler)
	return e
}

func do(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_EndToEnd(t *testing.T) {
	e := newTestServer(t)

	t.Run("health and metrics", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)
		rec := do(e, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "userdirectory_requests_total")
	})

	var created map[string]interface{}
	t.Run("create user", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/users",
			`{"fullName":"Ada Lovelace","email":" ADA@Example.com ","username":"Ada","password":"secret1","website":"ada.example.com"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		assert.Equal(t, "ada", created["username"])
		assert.Equal(t, "ada@example.com", created["email"])
		assert.Equal(t, "http://ada.example.com", created["website"])
		assert.Equal(t, "Ada Lovelace", created["fullName"])
		assert.NotContains(t, created, "password")
	})
	require.NotNil(t, created)
	id := created["id"].(string)

	t.Run("duplicate username", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/users",
			`{"firstName":"Other","lastName":"Ada","email":"other@example.com","username":"ADA","password":"secret1"}`, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid user", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/users", `{"username":"x"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	})

	t.Run("public lookups", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/users/"+id, "", "").Code)
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/users/by-username/ADA", "", "").Code)
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/users?limit=10", "", "").Code)
	})

	t.Run("secured routes need a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/me", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodDelete, "/api/users/"+id, "", "").Code)
	})

	var tokens handler.AuthResponse
	t.Run("login", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/auth/login", `{"username":"Ada","password":"secret1"}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
	})
	require.NotEmpty(t, tokens.AccessToken)

	t.Run("refresh token is not a bearer credential", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/me", "", tokens.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TOKEN_TYPE")

		rec = do(e, http.MethodDelete, "/api/users/"+id, "", tokens.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me and update", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/me", "", tokens.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"username":"ada"`)

		rec = do(e, http.MethodPatch, "/api/users/"+id, `{"fullName":"Augusta King"}`, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"fullName":"Augusta King"`)
	})

	t.Run("logout revokes access token", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/auth/logout",
			`{"refresh_token":"`+tokens.RefreshToken+`"}`, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(e, http.MethodGet, "/api/me", "", tokens.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_REVOKED")

		rec = do(e, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = do(e, http.MethodGet, "/api/me", "", tokens.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
