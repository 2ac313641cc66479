package projectx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

func authServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func TestLoginStoresToken(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/Auth/loginKey", r.URL.Path)
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "trader", req.UserName)
		assert.Equal(t, "key-123", req.APIKey)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginResponse{Token: "jwt-abc", Success: true})
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "key-123", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, "jwt-abc", s.Token())
}

func TestLoginRejectedCredential(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginResponse{Success: false, ErrorMessage: "invalid key"})
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "bad-key", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := s.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.Contains(t, err.Error(), "invalid key")
	assert.Empty(t, s.Token())
}

func TestLoginUnauthorizedStatus(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "key", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, s.Login(context.Background()), domain.ErrAuth)
}

func TestLoginServerErrorIsTransport(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "key", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := s.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrAuth)
}

func TestValidateRotatesToken(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/Auth/loginKey":
			json.NewEncoder(w).Encode(loginResponse{Token: "jwt-1", Success: true})
		case "/api/Auth/validate":
			assert.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(loginResponse{Token: "jwt-2", Success: true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "key", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Login(context.Background()))
	require.NoError(t, s.validate(context.Background()))
	assert.Equal(t, "jwt-2", s.Token())
}

func TestValidateRejectionIsFatal(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer srv.Close()

	s := NewAuthSession(srv.URL, "trader", "key", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, s.validate(context.Background()), domain.ErrAuth)
}
