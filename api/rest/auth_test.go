package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/api/rest"
	"github.com/kasuganosora/gildedrose/audit"
	"github.com/kasuganosora/gildedrose/cache"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/model"
	"github.com/kasuganosora/gildedrose/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type auditSink struct{ entries []audit.AuditEntry }

func (s *auditSink) Log(e audit.AuditEntry) { s.entries = append(s.entries, e) }

type authEnv struct {
	r     *gin.Engine
	db    *gorm.DB
	cache cache.Cache
	sink  *auditSink
}

func newAuthRouter(t *testing.T) *authEnv {
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	sink := &auditSink{}
	h := rest.NewAuthHandler(db, c, testSec, sink, nopLogger())
	r := gin.New()
	r.Use(mw.TraceID())
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", mw.Auth(testSec, c), h.Logout)
	r.POST("/api/auth/refresh", mw.Auth(testSec, c), h.Refresh)
	r.GET("/api/auth/me", mw.Auth(testSec, c), h.Me)
	r.POST("/api/stock", mw.Auth(testSec, c), func(ctx *gin.Context) {
		ctx.Status(http.StatusCreated)
	})
	return &authEnv{r: r, db: db, cache: c, sink: sink}
}

func (e *authEnv) setStatus(t *testing.T, user string, status int) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Account{}).Where("username = ?", user).
		Update("status", status).Error)
}

// signIn registers user, enables the account and logs in.
func (e *authEnv) signIn(t *testing.T, user, pass string) string {
	t.Helper()
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": user, "password": pass})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	e.setStatus(t, user, model.AccountActive)

	w = postJSON(e.r, "/api/auth/login", map[string]string{"username": user, "password": pass})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestLogin_RegistersPendingAccount(t *testing.T) {
	e := newAuthRouter(t)

	w := postJSON(e.r, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "pass1234",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decode(t, w)
	assert.NotContains(t, resp, "token")
	assert.NotZero(t, resp["account_id"])
	assert.Equal(t, true, resp["registered"])
	assert.Equal(t, "pending", resp["status"])

	var acc model.Account
	require.NoError(t, e.db.Where("username = ?", "alice").First(&acc).Error)
	assert.NotEqual(t, "pass1234", acc.PasswordHash)
	assert.Equal(t, model.AccountDisabled, acc.Status)

	require.Len(t, e.sink.entries, 1)
	assert.Equal(t, audit.ActionLogin, e.sink.entries[0].Action)
	assert.Equal(t, "account pending approval", e.sink.entries[0].Error)

	// Still pending on the next attempt.
	w = postJSON(e.r, "/api/auth/login", map[string]string{"username": "alice", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_AfterApproval(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "alice", "pass1234")
	assert.NotEmpty(t, token)

	var acc model.Account
	require.NoError(t, e.db.Where("username = ?", "alice").First(&acc).Error)
	assert.NotNil(t, acc.LastLoginAt)
	require.Len(t, e.sink.entries, 2)
	assert.Empty(t, e.sink.entries[1].Error)

	w := postJSON(e.r, "/api/stock", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLoginValidation(t *testing.T) {
	e := newAuthRouter(t)
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "a", "password": "pass1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(e.r, "/api/auth/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newAuthRouter(t)
	e.signIn(t, "bob", "correct")

	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.Len(t, e.sink.entries, 3)
	assert.Equal(t, "invalid credentials", e.sink.entries[2].Error)
}

func TestMe(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "erin", "pass1234")

	w := doJSON(e.r, http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	acc := decode(t, w)["account"].(map[string]interface{})
	assert.Equal(t, "erin", acc["username"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogout(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "dave", "pass1234")

	w2 := postJSON(e.r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w2.Code)

	// Session removed.
	w3 := postJSON(e.r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestRefresh(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "refreshuser", "pass1234")

	w2 := postJSON(e.r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w2.Code)
	newToken := decode(t, w2)["token"].(string)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, token, newToken)

	// Old token is revoked, new one works.
	w3 := doJSON(e.r, http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
	w4 := doJSON(e.r, http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+newToken)
	assert.Equal(t, http.StatusOK, w4.Code)
}

func TestRefresh_NoToken(t *testing.T) {
	e := newAuthRouter(t)
	w := postJSON(e.r, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_DisabledAccount(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "bob", "pass1234")
	e.setStatus(t, "bob", model.AccountDisabled)

	w := postJSON(e.r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, decode(t, w), "token")

	// The refused refresh also ends the session it was made with.
	w = postJSON(e.r, "/api/stock", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRevokedAccount_LosesAccess(t *testing.T) {
	e := newAuthRouter(t)
	token := e.signIn(t, "bob", "pass1234")

	var acc model.Account
	require.NoError(t, e.db.Where("username = ?", "bob").First(&acc).Error)
	require.NoError(t, mw.RevokeSessions(context.Background(), e.cache, acc.ID))

	w := postJSON(e.r, "/api/stock", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = postJSON(e.r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginDisabledAccount(t *testing.T) {
	e := newAuthRouter(t)
	e.signIn(t, "frank", "pass1234")
	e.setStatus(t, "frank", model.AccountDisabled)

	w2 := postJSON(e.r, "/api/auth/login", map[string]string{"username": "frank", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w2.Code)
}
