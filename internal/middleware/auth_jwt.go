package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"plantscan/internal/domain"
)

// TokenClaims are issued by the auth collaborator. Sub is the user id.
type TokenClaims struct {
	Locale string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

type subjectKey struct{}

// GuestHeader carries the install id of unauthenticated clients.
const GuestHeader = "X-Guest-ID"

// SignJWT issues an HS256 token. It is used by operator tooling and tests.
func SignJWT(secret string, claims TokenClaims) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty signing secret", domain.ErrConfiguration)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT validates signature, expiry and, when issuer is non-empty, the iss claim.
func VerifyJWT(secret, issuer, token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	var claims TokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token without subject")
	}
	return &claims, nil
}

// Subject resolves whose quota the request spends. A bearer token yields an
// authenticated subject; otherwise a UUID install id in X-Guest-ID yields a guest.
// Requests with neither, or with an invalid token, are rejected.
func Subject(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header")
					return
				}
				claims, err := VerifyJWT(secret, issuer, strings.TrimSpace(parts[1]))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
					return
				}
				ctx = ContextWithSubject(ctx, domain.Authenticated(claims.Subject))
				if claims.Locale != "" && r.Header.Get("X-Locale") == "" {
					ctx = context.WithValue(ctx, LocaleKey, negotiateLocale(claims.Locale, ""))
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			installID := strings.TrimSpace(r.Header.Get(GuestHeader))
			if installID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
				return
			}
			if _, err := uuid.Parse(installID); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid guest id")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(ctx, domain.Guest(strings.ToLower(installID)))))
		})
	}
}

// SubjectFromContext returns the resolved subject. ok is false outside Subject.
func SubjectFromContext(ctx context.Context) (domain.Subject, bool) {
	s, ok := ctx.Value(subjectKey{}).(domain.Subject)
	return s, ok
}

func ContextWithSubject(ctx context.Context, subject domain.Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// UserIDFromContext returns the authenticated user id, or "" for guests.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := SubjectFromContext(ctx); ok && s.IsAuthenticated() {
		return s.ID()
	}
	return ""
}
