package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/internal/observability"
	"go.uber.org/zap"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(token string) (auth.Claims, error) {
	args := m.Called(token)
	return args.Get(0).(auth.Claims), args.Error(1)
}

func okHandler(t *testing.T, want *auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		if want != nil {
			assert.Equal(t, *want, claims)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid bearer token allows request", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		mw := NewAuthMiddleware(verifier, nil, logger)

		claims := auth.Claims{Subject: "user-123", Email: "user@example.com", Role: auth.RoleUser}
		verifier.On("Verify", "valid-token").Return(claims, nil)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, &claims)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertExpectations(t)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		mw := NewAuthMiddleware(verifier, nil, logger)
		verifier.On("Verify", "tok").Return(auth.Claims{Subject: "u", Role: auth.RoleUser}, nil)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer tok")
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing or malformed header", func(t *testing.T) {
		headers := []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Token abc"}
		for _, h := range headers {
			verifier := new(MockTokenVerifier)
			mw := NewAuthMiddleware(verifier, nil, logger)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()

			mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler should not be called for %q", h)
			})).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", h)
			verifier.AssertNotCalled(t, "Verify", mock.Anything)
		}
	})

	t.Run("cookies are ignored", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		mw := NewAuthMiddleware(verifier, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAuth_RejectionsLookTheSame(t *testing.T) {
	reasons := []error{auth.ErrBadSignature, auth.ErrExpired, auth.ErrWrongIssuer, auth.ErrMalformed}

	var bodies []string
	for _, reason := range reasons {
		t.Run(reason.Error(), func(t *testing.T) {
			verifier := new(MockTokenVerifier)
			metrics := observability.NewMetrics()
			mw := NewAuthMiddleware(verifier, metrics, zap.NewNop())
			verifier.On("Verify", "tok").Return(auth.Claims{}, reason)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer tok")
			w := httptest.NewRecorder()

			mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Invalid or expired token")
			bodies = append(bodies, w.Body.String())

			expected := fmt.Sprintf(`
# HELP authcore_token_verifications_total Bearer token verifications by outcome.
# TYPE authcore_token_verifications_total counter
authcore_token_verifications_total{outcome=%q} 1
`, auth.RejectionReason(reason))
			assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "authcore_token_verifications_total"))
		})
	}

	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestRequireAuth_WithRealCodec(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "authcore-test",
		TTL:    time.Hour,
	}, auth.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, _, err := codec.Mint("user-1", "u@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	mw := NewAuthMiddleware(codec, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, auth.RoleAdmin, claims.Role)
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	last := byte('A')
	if token[len(token)-1] == 'A' {
		last = 'B'
	}
	tampered := token[:len(token)-1] + string(last)
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	w = httptest.NewRecorder()
	mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
