package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"myrhythm/internal/platform/logger"
	"myrhythm/internal/ports/auth"

	"github.com/stretchr/testify/assert"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if token == "good" {
		return auth.Claims{UserID: "u-token"}, nil
	}
	return auth.Claims{}, errors.New("bad token")
}

func whoami(w http.ResponseWriter, r *http.Request) {
	c, ok := GetClaims(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_, _ = w.Write([]byte(c.UserID))
}

func serve(h http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthContext_DevMode(t *testing.T) {
	h := AuthContext(AuthOptions{})(http.HandlerFunc(whoami))

	rec := serve(h, map[string]string{"X-Debug-User-ID": " u1 "})
	assert.Equal(t, "u1", rec.Body.String())

	rec = serve(h, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthContext_Verifier(t *testing.T) {
	h := AuthContext(AuthOptions{Verifier: stubVerifier{}})(http.HandlerFunc(whoami))

	rec := serve(h, map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, "u-token", rec.Body.String())

	rec = serve(h, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// con verifier el header de debug se ignora
	rec = serve(h, map[string]string{"X-Debug-User-ID": "u1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthContext_DebugHeaderWithVerifier(t *testing.T) {
	h := AuthContext(AuthOptions{Verifier: stubVerifier{}, AllowDebugHeader: true})(http.HandlerFunc(whoami))

	rec := serve(h, map[string]string{"X-Debug-User-ID": "u1"})
	assert.Equal(t, "u1", rec.Body.String())

	rec = serve(h, map[string]string{"X-Debug-User-ID": "u1", "Authorization": "Bearer good"})
	assert.Equal(t, "u-token", rec.Body.String())

	// token inválido cae al header de debug
	rec = serve(h, map[string]string{"X-Debug-User-ID": "u1", "Authorization": "Bearer nope"})
	assert.Equal(t, "u1", rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(h, nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
