package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/groundapi"
)

type claimsKey struct{}

// TokenVerifier validates bearer tokens. groundapi.TokenSource satisfies it.
type TokenVerifier interface {
	Verify(token string) (*groundapi.ServiceClaims, error)
}

// Auth admits requests carrying a bearer token that verifier accepts and
// stores its claims in the context. Rejections are 401 problems with an
// RFC 6750 WWW-Authenticate challenge.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, detail := bearerToken(r)
			if token == "" {
				challenge(w, r, "invalid_request", detail)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				challenge(w, r, "invalid_token", rejection(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// bearerToken extracts the token of a "Bearer" Authorization header, matching
// the scheme case-insensitively. On failure it returns "" and the reason.
func bearerToken(r *http.Request) (token, detail string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func rejection(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "access token has expired"
	case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "token not issued for this service"
	default:
		return "invalid access token"
	}
}

// challenge writes the 401 here because the response package imports
// middleware.
func challenge(w http.ResponseWriter, r *http.Request, code, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	models.NewProblem(models.ProblemUnauthorized, GetRequestID(r.Context()), detail).Write(w, r)
}

// GetClaims returns the verified token claims of the request, or nil.
func GetClaims(ctx context.Context) *groundapi.ServiceClaims {
	claims, _ := ctx.Value(claimsKey{}).(*groundapi.ServiceClaims)
	return claims
}

// GetSubject returns the verified token subject, or "" when unauthenticated.
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
