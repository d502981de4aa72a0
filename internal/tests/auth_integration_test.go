package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
	"github.com/vantage/server/internal/auth"
	"github.com/vantage/server/internal/config"
	"github.com/vantage/server/internal/db"
	httphandler "github.com/vantage/server/internal/http"
	"github.com/vantage/server/internal/http/handlers"
	"github.com/vantage/server/internal/repo"
)

func TestMain(m *testing.M) {
	// Set env if unset. Do NOT set DATABASE_URL; integration tests skip if missing.
	if os.Getenv("OTP_SALT") == "" {
		os.Setenv("OTP_SALT", "test-otp-salt")
	}
	os.Setenv("DEV_MODE", "true")

	os.Exit(m.Run())
}

// testServer holds the server, DB, and mail capture for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Mail   *captureMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that the test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database), "migrations must run successfully")

	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	sessionRepo := repo.NewSessionRepo(database)
	feedbackRepo := repo.NewFeedbackRepo(database)

	mailer := &captureMailer{}
	otpService := auth.NewOtpService(otpRepo, cfg.OTPSalt)
	authService := auth.NewService(userRepo, sessionRepo, otpService, mailer)

	cookie := handlers.CookieConfig{Name: cfg.CookieName, Secure: false}
	authHandler := handlers.NewAuthHandler(authService, cookie)
	diagHandler := handlers.NewDiagHandler()
	feedbackHandler := handlers.NewFeedbackHandler(feedbackRepo, mailer, "admin@example.com")

	router := httphandler.NewRouter(authHandler, diagHandler, feedbackHandler, httphandler.RouterConfig{
		SessionResolver: authService,
		CookieName:      cfg.CookieName,
		// Generous limits so test traffic is never throttled.
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Mail: mailer}
}

// newClient returns an HTTP client with a cookie jar, so session cookies behave
// like a browser's.
func (s *testServer) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (s *testServer) postJSON(t *testing.T, client *http.Client, path string, body any) (*http.Response, string) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(s.Server.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	respBody := readBody(t, resp)
	return resp, respBody
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (s *testServer) truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateAll(context.Background(), s.DB), "truncate tables")
}

// signupVerified drives a user through signup and verification.
func (s *testServer) signupVerified(t *testing.T, client *http.Client, email, password string) {
	t.Helper()
	resp, body := s.postJSON(t, client, "/api/signup", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "signup; body: %s", body)

	code := s.Mail.LastCode()
	require.NotEmpty(t, code, "signup must email a verification code")

	resp, body = s.postJSON(t, client, "/api/verify-otp", map[string]string{"email": email, "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode, "verify-otp; body: %s", body)
}

func TestAuthIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/health")
		require.NoError(t, err)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.True(t, body["ok"])
	})

	t.Run("SignupVerifyLogin", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)

		resp, body := ts.postJSON(t, client, "/api/signup", map[string]string{
			"email": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

		// Login before verification: correct password, no cookie, code reissued.
		mailsBefore := ts.Mail.Count()
		resp, body = ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "password1",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "body: %s", body)
		assert.Contains(t, body, "verify_required")
		assert.Empty(t, resp.Cookies(), "no session cookie for unverified login")
		assert.Equal(t, mailsBefore+1, ts.Mail.Count(), "unverified login must reissue a code")

		// Only the newest code verifies.
		code := ts.Mail.LastCode()
		resp, body = ts.postJSON(t, client, "/api/verify-otp", map[string]string{
			"email": "alice@example.com", "otp": code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		resp, body = ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		// check_session and /api/me see the cookie.
		resp, err := client.Get(ts.Server.URL + "/api/check_session")
		require.NoError(t, err)
		assert.Contains(t, readBody(t, resp), `"logged_in":true`)

		resp, err = client.Get(ts.Server.URL + "/api/me")
		require.NoError(t, err)
		body = readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "alice@example.com")
	})

	t.Run("DuplicateSignup", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)

		resp, _ := ts.postJSON(t, client, "/api/signup", map[string]string{
			"email": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := ts.postJSON(t, client, "/api/signup", map[string]string{
			"email": "Alice@Example.com", "password": "password2",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "case-insensitive duplicate; body: %s", body)
	})

	t.Run("VerifyWrongCode", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)

		resp, _ := ts.postJSON(t, client, "/api/signup", map[string]string{
			"email": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		code := ts.Mail.LastCode()
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		resp, body := ts.postJSON(t, client, "/api/verify-otp", map[string]string{
			"email": "alice@example.com", "otp": wrong,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)

		resp, body = ts.postJSON(t, client, "/api/verify-otp", map[string]string{
			"email": "alice@example.com", "otp": code,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		// Consumed: the same code must not verify twice.
		resp, body = ts.postJSON(t, client, "/api/verify-otp", map[string]string{
			"email": "alice@example.com", "otp": code,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	})

	t.Run("ForgotPasswordGenericResponses", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)
		ts.signupVerified(t, client, "alice@example.com", "password1")

		respKnown, bodyKnown := ts.postJSON(t, client, "/api/forgot-password", map[string]string{
			"email": "alice@example.com",
		})
		respUnknown, bodyUnknown := ts.postJSON(t, client, "/api/forgot-password", map[string]string{
			"email": "nobody@example.com",
		})

		assert.Equal(t, http.StatusOK, respKnown.StatusCode)
		assert.Equal(t, http.StatusOK, respUnknown.StatusCode)
		assert.Equal(t, bodyKnown, bodyUnknown, "responses must be indistinguishable")
	})

	t.Run("ResetPasswordRevokesSessions", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)
		ts.signupVerified(t, client, "alice@example.com", "password1")

		resp, body := ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		resp, _ = ts.postJSON(t, client, "/api/forgot-password", map[string]string{"email": "alice@example.com"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		code := ts.Mail.LastCode()
		require.NotEmpty(t, code)

		resp, body = ts.postJSON(t, client, "/api/reset-password", map[string]string{
			"email": "alice@example.com", "otp": code, "new_password": "newpassword1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		// The pre-reset session cookie is dead; the user must log in again.
		resp2, err := client.Get(ts.Server.URL + "/api/me")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode, "body: %s", readBody(t, resp2))

		resp, body = ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "newpassword1",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	})

	t.Run("ChangePasswordKeepsCallerLoggedIn", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)
		otherClient := ts.newClient(t)
		ts.signupVerified(t, client, "alice@example.com", "password1")

		for _, c := range []*http.Client{client, otherClient} {
			resp, body := ts.postJSON(t, c, "/api/login", map[string]string{
				"identifier": "alice@example.com", "password": "password1",
			})
			require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		}

		resp, body := ts.postJSON(t, client, "/api/change-password", map[string]string{
			"old_password": "password1", "new_password": "newpassword1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		// The caller got a fresh cookie; the other session is revoked.
		respMe, err := client.Get(ts.Server.URL + "/api/me")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, respMe.StatusCode, "body: %s", readBody(t, respMe))

		respOther, err := otherClient.Get(ts.Server.URL + "/api/me")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, respOther.StatusCode, "body: %s", readBody(t, respOther))
	})

	t.Run("LogoutClearsSession", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)
		ts.signupVerified(t, client, "alice@example.com", "password1")

		resp, _ := ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = ts.postJSON(t, client, "/api/logout", map[string]string{})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp2, err := client.Get(ts.Server.URL + "/api/check_session")
		require.NoError(t, err)
		assert.Contains(t, readBody(t, resp2), `"logged_in":false`)
	})

	t.Run("DeleteAccountCascades", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)
		ts.signupVerified(t, client, "alice@example.com", "password1")

		resp, _ := ts.postJSON(t, client, "/api/login", map[string]string{
			"identifier": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		req, err := http.NewRequest(http.MethodDelete, ts.Server.URL+"/api/account", nil)
		require.NoError(t, err)
		resp2, err := client.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp2.StatusCode, "body: %s", readBody(t, resp2))

		var users, sessions, challenges int
		require.NoError(t, ts.DB.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
		require.NoError(t, ts.DB.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessions))
		require.NoError(t, ts.DB.QueryRow("SELECT COUNT(*) FROM otp_challenges").Scan(&challenges))
		assert.Zero(t, users)
		assert.Zero(t, sessions, "sessions must cascade")
		assert.Zero(t, challenges, "challenges must cascade")
	})

	t.Run("DiagnosticsRequireSession", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)

		resp, body := ts.postJSON(t, client, "/api/whois", map[string]string{"host": "example.com"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "body: %s", body)
	})

	t.Run("ContactStoresFeedback", func(t *testing.T) {
		ts.truncate(t)
		client := ts.newClient(t)

		resp, body := ts.postJSON(t, client, "/api/contact", map[string]string{
			"name": "Alice", "email": "alice@example.com", "message": "great tool",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode, "body: %s", body)

		var count int
		require.NoError(t, ts.DB.QueryRow("SELECT COUNT(*) FROM feedback").Scan(&count))
		assert.Equal(t, 1, count)
	})
}
