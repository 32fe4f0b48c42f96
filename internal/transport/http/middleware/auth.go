package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JosephRemingston/insightAI/internal/models"
	logctx "github.com/JosephRemingston/insightAI/internal/pkg/log"
	"github.com/JosephRemingston/insightAI/internal/service"
	apierrors "github.com/JosephRemingston/insightAI/internal/transport/http/errors"
)

type (
	userKey  struct{}
	tokenKey struct{}
)

// Authenticator resolves a bearer access token to its tenant.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// access token with 401. On success the tenant and the raw token are put
// into the context and the request logger gains tenant_id.
func RequireAuth(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				logctx.From(r.Context()).Debug("auth_rejected", slog.String("err", err.Error()))
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			ctx = context.WithValue(ctx, tokenKey{}, token)
			ctx = logctx.With(ctx, slog.String("tenant_id", user.ID.String()))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated tenant.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// AccessTokenFrom returns the raw bearer token of the request.
func AccessTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
