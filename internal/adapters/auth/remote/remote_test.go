package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, verifyPath, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))

		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)

		switch in["token"] {
		case "good":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(verifyResponse{UserID: " u1 ", Email: "u1@x"})
		case "empty":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		case "boom":
			http.Error(w, "boom", http.StatusBadGateway)
		default:
			http.Error(w, "no", http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier(t *testing.T) {
	srv := newServer(t)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)
	v := NewVerifier(c)
	ctx := context.Background()

	claims, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1@x", claims.Email)

	_, err = v.Verify(ctx, "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(ctx, "boom")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(ctx, "empty")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(ctx, " ")
	assert.ErrorIs(t, err, ErrTokenEmpty)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	var v *Verifier
	_, err = v.Verify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
