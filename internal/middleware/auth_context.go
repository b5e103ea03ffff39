package middleware

import (
	"context"
	"net/http"
	"strings"

	"myrhythm/internal/platform/logger"
	"myrhythm/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

const debugUserHeader = "X-Debug-User-ID"

type AuthOptions struct {
	// Verifier nil => modo dev: sólo X-Debug-User-ID.
	Verifier auth.AuthVerifier
	// AllowDebugHeader acepta X-Debug-User-ID también con verifier
	// (entornos de staging). Un bearer válido tiene prioridad.
	AllowDebugHeader bool
	Logger           logger.Logger
}

// AuthContext deja los claims en el contexto si los hay. No corta el request:
// cada handler decide 401/403.
func AuthContext(opts AuthOptions) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	allowDebug := opts.Verifier == nil || opts.AllowDebugHeader

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Verifier != nil {
				if token := bearerToken(r.Header.Get("Authorization")); token != "" {
					claims, err := opts.Verifier.Verify(r.Context(), token)
					if err == nil {
						next.ServeHTTP(w, withClaims(r, claims))
						return
					}
					log.Debug("token rejected", map[string]any{"err": err, "path": r.URL.Path})
				}
			}

			if allowDebug {
				if uid := strings.TrimSpace(r.Header.Get(debugUserHeader)); uid != "" {
					next.ServeHTTP(w, withClaims(r, auth.Claims{UserID: uid}))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withClaims(r *http.Request, c auth.Claims) *http.Request {
	c.UserID = strings.TrimSpace(c.UserID)
	return r.WithContext(context.WithValue(r.Context(), claimsKey, c))
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func bearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
