package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantscan/internal/domain"
)

const testSecret = "test-secret"

func token(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	tok, err := SignJWT(secret, TokenClaims{
		Locale: "fr",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "auth.plantscan",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)
	return tok
}

func TestVerifyJWT(t *testing.T) {
	valid := token(t, testSecret, "user-42", time.Now().Add(time.Hour))

	claims, err := VerifyJWT(testSecret, "auth.plantscan", valid)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "fr", claims.Locale)

	_, err = VerifyJWT("other", "", valid)
	assert.Error(t, err)

	_, err = VerifyJWT(testSecret, "someone-else", valid)
	assert.Error(t, err)

	expired := token(t, testSecret, "user-42", time.Now().Add(-time.Hour))
	_, err = VerifyJWT(testSecret, "", expired)
	assert.Error(t, err)

	anonymous := token(t, testSecret, "", time.Now().Add(time.Hour))
	_, err = VerifyJWT(testSecret, "", anonymous)
	assert.Error(t, err)
}

func TestSignJWTRequiresSecret(t *testing.T) {
	_, err := SignJWT("", TokenClaims{})
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSubjectMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantKey    string
	}{
		{
			name: "bearer token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+token(t, testSecret, "42", time.Now().Add(time.Hour)))
			},
			wantStatus: http.StatusOK,
			wantKey:    "user:42",
		},
		{
			name: "bearer wins over guest header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer "+token(t, testSecret, "42", time.Now().Add(time.Hour)))
				r.Header.Set(GuestHeader, "0b7e7dc4-2c4e-4d8b-9b0a-3e3f8f1c2d10")
			},
			wantStatus: http.StatusOK,
			wantKey:    "user:42",
		},
		{
			name: "guest install id",
			setup: func(r *http.Request) {
				r.Header.Set(GuestHeader, "0B7E7DC4-2C4E-4D8B-9B0A-3E3F8F1C2D10")
			},
			wantStatus: http.StatusOK,
			wantKey:    "guest:0b7e7dc4-2c4e-4d8b-9b0a-3e3f8f1c2d10",
		},
		{
			name: "invalid token is not downgraded to guest",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer nope")
				r.Header.Set(GuestHeader, "0b7e7dc4-2c4e-4d8b-9b0a-3e3f8f1c2d10")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed guest id",
			setup: func(r *http.Request) {
				r.Header.Set(GuestHeader, "../../etc/passwd")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no credentials",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotKey string
			h := Subject(testSecret, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s, ok := SubjectFromContext(r.Context())
				require.True(t, ok)
				gotKey = s.Key()
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantKey, gotKey)
			if tc.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestSubjectMiddlewareCarriesTokenLocale(t *testing.T) {
	var locale, userID string
	h := Subject(testSecret, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		userID = UserIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, "42", time.Now().Add(time.Hour)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "fr", locale)
	assert.Equal(t, "42", userID)
}
