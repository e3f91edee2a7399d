package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterease/internal/config"
	"meterease/internal/dto"
	"meterease/internal/logger"
	"meterease/internal/metrics"
	"meterease/internal/repository/sqlite"
	"meterease/internal/service/auth"
)

func newAuthServer(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		LogDirectory:    filepath.Join(dir, "logs"),
		JWTSecret:       "route-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		CORSOrigins:     []string{"http://app.test"},
	}
	l, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	db, err := sqlite.New(filepath.Join(dir, "users.db"), sqlite.AuthSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	m, err := metrics.NewWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	svc := auth.NewService(cfg, users, users, m, l)
	return SetupAuthRoutes(cfg, l, svc, m), svc
}

func signupBody(mobile, password, confirm string) string {
	b, _ := json.Marshal(dto.SignupRequest{
		Name:            "Meena",
		MobileNumber:    mobile,
		Password:        password,
		ConfirmPassword: confirm,
	})
	return string(b)
}

func login(h http.Handler, mobile, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {mobile}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(h, req)
}

func TestAuthFlow(t *testing.T) {
	h, _ := newAuthServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(signupBody("9123456780", "pw", "pw"))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.RefreshToken)

	rec = login(h, "9123456780", "pw")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Meena","mobile_number":"9123456780","service_number":null}`, rec.Body.String())
}

func TestSignupRejections(t *testing.T) {
	h, _ := newAuthServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(signupBody("9123456780", "pw", "other"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(signupBody("912345678", "pw", "pw"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "mobile_number")

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing was written, so the number is still free.
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(signupBody("9123456780", "pw", "pw"))))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	h, _ := newAuthServer(t)
	serve(h, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(signupBody("9123456780", "pw", "pw"))))

	wrong := login(h, "9123456780", "nope")
	unknown := login(h, "9000000000", "pw")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, "Bearer", wrong.Header().Get("WWW-Authenticate"))
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Contains(t, wrong.Body.String(), "Incorrect mobile number or password")
}

func TestMeRequiresValidToken(t *testing.T) {
	h, _ := newAuthServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeterRoutesRequireTokenWhenConfigured(t *testing.T) {
	_, authSvc := newAuthServer(t)
	s := newMeterServer(t)

	deps := s.deps
	deps.Verifier = authSvc
	guarded := SetupMeterRoutes(deps)

	rec := serve(guarded, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.logger.Warning("kept until an authorized clear")
	rec = serve(guarded, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = serve(guarded, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	content, err := os.ReadFile(s.logger.Path(logger.LevelWarning))
	require.NoError(t, err)
	assert.Contains(t, string(content), "kept until an authorized clear")

	pair, err := authSvc.Signup(context.Background(), auth.SignupRequest{
		Name: "Meena", MobileNumber: "9123456780", Password: "pw", ConfirmPassword: "pw",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = serve(guarded, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = serve(guarded, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(guarded, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthLogsRequireToken(t *testing.T) {
	h, authSvc := newAuthServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/logs/error", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	pair, err := authSvc.Signup(context.Background(), auth.SignupRequest{
		Name: "Meena", MobileNumber: "9123456780", Password: "pw", ConfirmPassword: "pw",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = serve(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newAuthServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/signup", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
