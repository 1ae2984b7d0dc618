package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/repository"
	"github.com/nkiryanov/calcboard/internal/service/auth"
	"github.com/nkiryanov/calcboard/internal/service/auth/revocation"
	"github.com/nkiryanov/calcboard/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/calcboard/internal/service/calculation"
	"github.com/nkiryanov/calcboard/internal/service/user"
)

const strongPassword = "SecurePass123!"

// Wire production services over given storage and start http server
func newTestServer(t *testing.T, storage repository.Storage, opts Options) *httptest.Server {
	t.Helper()

	registry := revocation.NewRegistry(revocation.Config{}, storage.Revoked())

	keys, err := tokenmanager.NewStaticKeys(tokenmanager.Key{ID: "test", Secret: []byte("test-secret-key")})
	require.NoError(t, err)

	tokens, err := tokenmanager.New(tokenmanager.Config{Keys: keys}, registry)
	require.NoError(t, err, "token manager should be created without errors")

	authService, err := auth.NewService(
		auth.Config{Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost}},
		tokens, registry, storage, logger.NewNoOpLogger(),
	)
	require.NoError(t, err, "auth service couldn't be started")

	router := NewRouter(Services{
		Auth:        authService,
		User:        user.NewService(storage),
		Calculation: calculation.NewService(storage),
	}, opts, logger.NewNoOpLogger())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type response struct {
	code    int
	header  http.Header
	cookies []*http.Cookie
	body    string
}

// Decode body to map, handy to check single fields
func (r response) json(t *testing.T) map[string]any {
	t.Helper()

	var data map[string]any
	require.NoErrorf(t, json.Unmarshal([]byte(r.body), &data), "body is not json object: %s", r.body)
	return data
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type requestOption func(r *http.Request)

func withAccess(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func do(t *testing.T, srv *httptest.Server, method string, path string, body string, opts ...requestOption) response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err, "should make request to test server")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")
	defer resp.Body.Close() // nolint:errcheck

	return response{code: resp.StatusCode, header: resp.Header, cookies: resp.Cookies(), body: string(data)}
}

func registerBody(username string, password string) string {
	data, _ := json.Marshal(map[string]string{
		"username":         username,
		"email":            username + "@example.com",
		"first_name":       "Flow",
		"last_name":        "Tester",
		"password":         password,
		"confirm_password": password,
	})
	return string(data)
}

func loginBody(username string, password string) string {
	data, _ := json.Marshal(map[string]string{"username": username, "password": password})
	return string(data)
}

// Register user and return its access token and refresh cookie
func register(t *testing.T, srv *httptest.Server, username string) (string, *http.Cookie) {
	t.Helper()

	resp := do(t, srv, http.MethodPost, "/api/auth/register", registerBody(username, strongPassword))
	require.Equalf(t, http.StatusCreated, resp.code, "register failed. Body: %s", resp.body)

	cookie := resp.cookie("refreshToken")
	require.NotNil(t, cookie, "refresh cookie should be set")

	return resp.json(t)["access_token"].(string), cookie
}

const invalidSession = `{"error": "service_error", "message": "Invalid session, please log in again"}`
