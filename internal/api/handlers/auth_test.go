package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/auth"
	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockAuthService struct {
	signupFn func(ctx context.Context, email, password, fullName string) (*auth.Login, error)
	loginFn  func(ctx context.Context, email, password string) (*auth.Login, error)
	revoked  []string
}

func (m *mockAuthService) Signup(ctx context.Context, email, password, fullName, _, _ string) (*auth.Login, error) {
	return m.signupFn(ctx, email, password, fullName)
}

func (m *mockAuthService) Login(ctx context.Context, email, password, _, _ string) (*auth.Login, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) Logout(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return nil
}

func userLogin(email string) *auth.Login {
	user := &types.User{ID: "usr_1", Email: email, MessageEmailPref: types.EmailPrefEach}
	return &auth.Login{
		Actor: types.Actor{ID: user.ID, Type: types.ActorTypeUser, Email: email},
		User:  user,
		Session: &types.Session{
			ID:        "sess_abc",
			SubjectID: user.ID,
			ActorType: types.ActorTypeUser,
			CSRFToken: "csrf_xyz",
			ExpiresAt: testNow.Add(168 * time.Hour),
		},
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func newAuthRouter(svc *mockAuthService) chi.Router {
	users := &mockUsers{users: map[string]*types.User{
		"usr_1": {ID: "usr_1", Email: "joe@example.com", FullName: "Joe"},
	}}
	h := NewAuthHandler(svc, users, NewCookieConfig("", true, 168*time.Hour), core.NewValidator(nil), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r, passThrough)
	return r
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == core.DefaultSessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", core.DefaultSessionCookie)
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func TestAuthHandler_Signup(t *testing.T) {
	var gotName string
	svc := &mockAuthService{signupFn: func(_ context.Context, email, _, fullName string) (*auth.Login, error) {
		gotName = fullName
		return userLogin(email), nil
	}}
	router := newAuthRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/auth/signup", map[string]any{
		"email":     "joe@example.com",
		"password":  "correct horse battery",
		"full_name": "  Joe Hauler ",
	}))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Joe Hauler", gotName)

	cookie := sessionCookie(t, rr)
	assert.Equal(t, "sess_abc", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, 168*3600, cookie.MaxAge)

	var resp AuthResponse
	decodeData(t, rr, &resp)
	assert.Equal(t, "sess_abc", resp.Token)
	assert.Equal(t, "csrf_xyz", resp.CSRFToken)
	assert.Equal(t, types.ActorTypeUser, resp.Role)
	require.NotNil(t, resp.User)
	assert.Nil(t, resp.Admin)
}

func TestAuthHandler_Signup_Validation(t *testing.T) {
	svc := &mockAuthService{}
	router := newAuthRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/auth/signup",
		map[string]any{"email": "nope", "password": "secret123"}))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidEmail)
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   types.ErrorCode
	}{
		{"unknown user looks like bad password", types.NewAppError(types.ErrCodeAuthUserNotFound, "no such user", nil), http.StatusUnauthorized, types.ErrCodeAuthInvalidCreds},
		{"bad password", types.NewAppError(types.ErrCodeAuthInvalidCreds, "hash mismatch", nil), http.StatusUnauthorized, types.ErrCodeAuthInvalidCreds},
		{"locked", types.NewAppError(types.ErrCodeAuthLocked, "locked", nil), http.StatusTooManyRequests, types.ErrCodeAuthLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{loginFn: func(context.Context, string, string) (*auth.Login, error) {
				return nil, tt.err
			}}
			router := newAuthRouter(svc)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/auth/login",
				map[string]any{"email": "joe@example.com", "password": "wrong"}))

			assertErrorCode(t, rr, tt.status, tt.code)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &mockAuthService{loginFn: func(_ context.Context, email, _ string) (*auth.Login, error) {
		return userLogin(email), nil
	}}
	router := newAuthRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/auth/login",
		map[string]any{"email": "joe@example.com", "password": "right"}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "sess_abc", sessionCookie(t, rr).Value)
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := &mockAuthService{}
	router := newAuthRouter(svc)

	// Session resolved by the middleware.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, userCtx("usr_1", "joe@example.com"), http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, -1, sessionCookie(t, rr).MaxAge)

	// Raw cookie only.
	req := newRequest(t, nil, http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: core.DefaultSessionCookie, Value: "sess_stale"})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// Nothing to revoke.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	assert.Equal(t, []string{"sess_usr_1", "sess_stale"}, svc.revoked)
}

func TestAuthHandler_Me(t *testing.T) {
	router := newAuthRouter(&mockAuthService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, userCtx("usr_1", "joe@example.com"), http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me MeResponse
	decodeData(t, rr, &me)
	assert.Equal(t, types.ActorTypeUser, me.Role)
	require.NotNil(t, me.User)
	assert.Equal(t, "Joe", me.User.FullName)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, adminCtx(), http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	me = MeResponse{}
	decodeData(t, rr, &me)
	assert.Equal(t, types.ActorTypeAdmin, me.Role)
	assert.Nil(t, me.User)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(t, nil, http.MethodGet, "/auth/me", nil))
	assertErrorCode(t, rr, http.StatusUnauthorized, types.ErrCodeAuthTokenMissing)
}
