package auth

import (
	"context"
	"net/http"
	"strings"

	mylog "github.com/mohammed-shakir/hexselect/internal/logger"
)

const CookieName = "hexselect_session"

type ctxKey struct{}

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func UserFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(ctxKey{}).(string); ok {
		return u
	}
	return ""
}

// TokenFromRequest reads a Bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Require rejects requests without a live session with 401.
func (a *Authenticator) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := Anonymous
			if a.enabled {
				s, err := a.Lookup(TokenFromRequest(r))
				if err != nil {
					w.Header().Set("WWW-Authenticate", `Bearer realm="hexselect"`)
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}
				user = s.User
			}
			ctx := WithUser(r.Context(), user)
			ctx = mylog.WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
