package restauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congresoumg/portal-gateway/internal/ports"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL is required")
}

func TestClient_Login_Success(t *testing.T) {
	expires := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "alumno@miumg.edu.gt", creds["email"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"token": "backend-token-1",
			"profile": map[string]any{
				"id":         "user-1",
				"email":      "alumno@miumg.edu.gt",
				"role_level": 0,
			},
			"expires_at": expires,
		}))
	}))

	result, err := client.Login(context.Background(), "alumno@miumg.edu.gt", "secreto")

	require.NoError(t, err)
	assert.Equal(t, "backend-token-1", result.Token)
	assert.Equal(t, "user-1", result.Payload["id"])
	assert.True(t, result.ExpiresAt.Equal(expires))
}

func TestClient_Login_DefaultsExpiryWhenAbsent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"token":   "backend-token-1",
			"profile": map[string]any{"id": "user-1"},
		}))
	}))

	result, err := client.Login(context.Background(), "a@b.c", "x")

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultSessionDuration), result.ExpiresAt, time.Minute)
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid_credentials",
			"message": "correo o contraseña incorrectos",
		})
	}))

	_, err := client.Login(context.Background(), "a@b.c", "mal")

	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrBackendUnauthorized)

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "invalid_credentials", le.Code)
	assert.Equal(t, "correo o contraseña incorrectos", le.Message)
}

func TestClient_Login_UnauthorizedWithoutBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Login(context.Background(), "a@b.c", "mal")

	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrBackendUnauthorized)
}

func TestClient_Login_ServerErrorIsNotUnauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Login(context.Background(), "a@b.c", "x")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrBackendUnauthorized)

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "backend_error", le.Code)
}

func TestClient_Login_MissingToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"profile": map[string]any{"id": "user-1"},
		}))
	}))

	_, err := client.Login(context.Background(), "a@b.c", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token")
}

func TestClient_FetchProfile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/session", r.URL.Path)
		assert.Equal(t, "Bearer backend-token-1", r.Header.Get("Authorization"))

		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"id":         "user-1",
			"role_level": 0,
		}))
	}))

	payload, err := client.FetchProfile(context.Background(), "backend-token-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", payload["id"])
}

func TestClient_FetchProfile_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchProfile(context.Background(), "stale-token")

	assert.ErrorIs(t, err, ports.ErrBackendUnauthorized)
}

func TestClient_FetchProfile_UnexpectedStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.FetchProfile(context.Background(), "backend-token-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrBackendUnauthorized)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestClient_Logout(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/logout", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.Logout(context.Background(), "backend-token-1"))
	assert.Equal(t, "Bearer backend-token-1", gotAuth)
}

func TestClient_Logout_UnexpectedStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.Logout(context.Background(), "backend-token-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"id": "user-1"}))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = client.FetchProfile(context.Background(), "backend-token-1")
	assert.NoError(t, err)
}
