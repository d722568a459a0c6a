package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/handler"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/storage/memory"
	redisStore "github.com/nithin1018/Village-Banking-App/internal/adapter/storage/redis"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resetCodePattern = regexp.MustCompile(`code is (\d{4})\.`)

// mailbox captures notifications instead of delivering them.
type mailbox struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *mailbox) Notify(_ context.Context, n domain.Notification) {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
}

func (m *mailbox) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	match := resetCodePattern.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

type bankApp struct {
	router *gin.Engine
	mail   *mailbox
	audit  *memory.AuditRepo
	mr     *miniredis.Miniredis
}

func newBankApp(t *testing.T, rules map[string]config.RateRule) *bankApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.New(io.Discard)

	store := memory.NewStore(2 * time.Second)
	users := memory.NewUserRepo(store)
	accounts := memory.NewAccountRepo(store)
	txns := memory.NewTransactionRepo(store)
	auditRepo := memory.NewAuditRepo(store)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	tokenSvc := service.NewJWTTokenService("router-test-secret-of-sufficient-length", time.Hour, "village-bank-test")
	allocator := service.NewAccountNumberAllocator(config.LedgerConfig{
		AccountNumberMin:      100000,
		AccountNumberMax:      999999,
		MaxAllocationAttempts: 32,
	}, log)
	mail := &mailbox{}

	router := handler.SetupRouter(handler.RouterDeps{
		AuthSvc:     service.NewAuthService(users, accounts, store, allocator, hashSvc, tokenSvc, log),
		OTPSvc:      service.NewOTPService(users, hashSvc, mail, 5*time.Minute, log),
		AccountSvc:  service.NewAccountService(accounts, txns, 50),
		LedgerSvc:   service.NewLedgerService(accounts, txns, store, log),
		TokenSvc:    tokenSvc,
		RateLimiter: service.NewScopedRateLimiter(redisStore.NewRateLimitStore(client, "test"), rules),
		AuditSvc:    service.NewAuditService(auditRepo, log),
		Idempotency: redisStore.NewIdempotencyCache(client, "test:idem"),
		HealthCheckers: []ports.HealthChecker{
			redisStore.NewHealthCheck(client),
		},
		OpenAPIDoc: []byte("openapi: 3.0.3\n"),
		Logger:     log,
	})

	return &bankApp{router: router, mail: mail, audit: auditRepo, mr: mr}
}

func (a *bankApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	w := a.send(t, method, path, token, "", body)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (a *bankApp) send(t *testing.T, method, path, token, idempotencyKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, idempotencyKey)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func (a *bankApp) register(t *testing.T, email, role string) string {
	t.Helper()
	body := map[string]string{
		"email": email, "password": "password123", "first_name": "Test", "role": role,
	}
	if role == "staff" || role == "admin" {
		body["employee_id"] = "EMP-1"
	}
	status, resp := a.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, status, resp)
	number, _ := data(resp)["account_number"].(string)
	return number
}

func (a *bankApp) login(t *testing.T, email, password string) string {
	t.Helper()
	status, resp := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status, resp)
	return data(resp)["token"].(string)
}

func generousRules() map[string]config.RateRule {
	rules := make(map[string]config.RateRule)
	for _, scope := range []string{
		service.ScopeOTP, service.ScopeTransaction, service.ScopePassword,
		service.ScopeAuthLogin, service.ScopeAuthRegister, service.ScopeAccount,
	} {
		rules[scope] = config.RateRule{Limit: 1000, Window: time.Minute}
	}
	return rules
}

func TestRouter_LedgerFlow(t *testing.T) {
	app := newBankApp(t, generousRules())

	app.register(t, "ada@example.com", "")
	bobNumber := app.register(t, "bob@example.com", "user")
	require.Regexp(t, `^[0-9]{6}$`, bobNumber)

	ada := app.login(t, "ADA@example.com", "password123")
	bob := app.login(t, "bob@example.com", "password123")

	status, resp := app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "deposit", "amount": "100",
	})
	require.Equal(t, http.StatusCreated, status, resp)
	assert.Equal(t, "success", data(resp)["status"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "transfer", "amount": "40", "receiver_account_number": bobNumber,
	})
	require.Equal(t, http.StatusCreated, status, resp)

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "withdraw", "amount": "1000",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "TXN_001", resp["error_code"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me", ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "60.00", data(resp)["balance"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "40.00", data(resp)["balance"])
	assert.Equal(t, bobNumber, data(resp)["account_number"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me/transactions", ada, nil)
	require.Equal(t, http.StatusOK, status)
	history := data(resp)
	assert.Equal(t, float64(3), history["count"])
	items := history["items"].([]interface{})
	newest := items[0].(map[string]interface{})
	assert.Equal(t, "withdraw", newest["transaction_type"])
	assert.Equal(t, "failed", newest["status"])
	assert.Equal(t, "debit", items[1].(map[string]interface{})["direction"])
	assert.Equal(t, "credit", items[2].(map[string]interface{})["direction"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me/transactions", bob, nil)
	require.Equal(t, http.StatusOK, status)
	bobItems := data(resp)["items"].([]interface{})
	require.Len(t, bobItems, 1)
	assert.Equal(t, "credit", bobItems[0].(map[string]interface{})["direction"])

	assert.Eventually(t, func() bool {
		var transactions int
		for _, e := range app.audit.Entries() {
			if e.Action == domain.AuditActionTransaction {
				transactions++
			}
		}
		return transactions == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_IdempotentDeposit(t *testing.T) {
	app := newBankApp(t, generousRules())

	app.register(t, "ada@example.com", "user")
	ada := app.login(t, "ada@example.com", "password123")
	deposit := map[string]string{"transaction_type": "deposit", "amount": "25.50"}

	first := app.send(t, http.MethodPost, "/api/v1/transactions", ada, "dep-1", deposit)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := app.send(t, http.MethodPost, "/api/v1/transactions", ada, "dep-1", deposit)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(middleware.HeaderReplayed))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	fresh := app.send(t, http.MethodPost, "/api/v1/transactions", ada, "dep-2", deposit)
	require.Equal(t, http.StatusCreated, fresh.Code)
	assert.Empty(t, fresh.Header().Get(middleware.HeaderReplayed))

	status, resp := app.do(t, http.MethodGet, "/api/v1/accounts/me", ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "51.00", data(resp)["balance"])

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me/transactions", ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), data(resp)["count"])
}

func TestRouter_TransferRejections(t *testing.T) {
	app := newBankApp(t, generousRules())

	adaNumber := app.register(t, "ada@example.com", "user")
	ada := app.login(t, "ada@example.com", "password123")

	status, resp := app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "transfer", "amount": "1", "receiver_account_number": adaNumber,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "TXN_004", resp["error_code"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "transfer", "amount": "1", "receiver_account_number": "000001",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TXN_003", resp["error_code"])

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions", ada, map[string]string{
		"transaction_type": "transfer", "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "TXN_005", resp["error_code"])
}

func TestRouter_RoleGates(t *testing.T) {
	app := newBankApp(t, generousRules())

	status, resp := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "admin@example.com", "password": "password123", "first_name": "A", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AUTH_006", resp["error_code"])

	number := app.register(t, "staff@example.com", "staff")
	assert.Empty(t, number)
	staff := app.login(t, "staff@example.com", "password123")

	status, resp = app.do(t, http.MethodPost, "/api/v1/transactions", staff, map[string]string{
		"transaction_type": "deposit", "amount": "10",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_004", resp["error_code"])

	status, _ = app.do(t, http.MethodGet, "/api/v1/accounts/me", staff, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = app.do(t, http.MethodGet, "/api/v1/accounts/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_003", resp["error_code"])

	status, _ = app.do(t, http.MethodGet, "/api/v1/accounts/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_PasswordReset(t *testing.T) {
	app := newBankApp(t, generousRules())
	app.register(t, "ada@example.com", "user")

	status, resp := app.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusAccepted, status)
	accepted := data(resp)["message"]

	status, resp = app.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, accepted, data(resp)["message"])

	code := app.mail.lastCode(t)
	reset := map[string]string{"email": "ada@example.com", "code": code, "new_password": "fresh-password-1"}

	status, resp = app.do(t, http.MethodPost, "/api/v1/auth/password/reset", "", reset)
	require.Equal(t, http.StatusOK, status, resp)

	// single use
	status, resp = app.do(t, http.MethodPost, "/api/v1/auth/password/reset", "", reset)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_001", resp["error_code"])

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	token := app.login(t, "ada@example.com", "fresh-password-1")

	status, resp = app.do(t, http.MethodPost, "/api/v1/auth/password/change", token, map[string]string{
		"current_password": "fresh-password-1", "new_password": "changed-password-2",
	})
	require.Equal(t, http.StatusOK, status, resp)
	app.login(t, "ada@example.com", "changed-password-2")
}

func TestRouter_RateLimitsOTP(t *testing.T) {
	rules := generousRules()
	rules[service.ScopeOTP] = config.RateRule{Limit: 2, Window: time.Minute}
	app := newBankApp(t, rules)

	body := map[string]string{"email": "nobody@example.com"}
	for i := 0; i < 2; i++ {
		status, _ := app.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", body)
		require.Equal(t, http.StatusAccepted, status)
	}

	status, resp := app.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", resp["error_code"])

	app.mr.FastForward(time.Minute)
	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", body)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestRouter_ForwardedForDoesNotSplitOTPQuota(t *testing.T) {
	rules := generousRules()
	rules[service.ScopeOTP] = config.RateRule{Limit: 2, Window: time.Minute}
	app := newBankApp(t, rules)

	body := `{"email":"victim@example.com","code":"1234","new_password":"newpassword1"}`
	var passed int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/reset", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		if w.Code != http.StatusTooManyRequests {
			passed++
		}
	}

	assert.Equal(t, 2, passed, "guesses from one socket must share one quota")
}

func TestRouter_HealthAndDocs(t *testing.T) {
	app := newBankApp(t, generousRules())

	status, resp := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", resp["status"])

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	app.mr.Close()
	status, resp = app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", resp["status"])
}
