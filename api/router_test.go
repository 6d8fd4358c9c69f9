package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/config"
	"github.com/kasuganosora/gildedrose/scheduler"
	"github.com/kasuganosora/gildedrose/shop"
	"github.com/kasuganosora/gildedrose/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg, err := config.LoadOrDefault("")
	require.NoError(t, err)
	cfg.Server.AdminKey = "admin"
	cfg.Security.JWTSecret = "router-secret"
	if mutate != nil {
		mutate(cfg)
	}

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	log := testutil.NopLogger()
	sched := scheduler.New(log)
	t.Cleanup(sched.Stop)

	return NewEngine(Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		PubSub:    ps,
		Shop:      shop.NewService(db, c, ps, nil, shop.Options{}, log),
		Scheduler: sched,
		Logger:    log,
	})
}

func call(r http.Handler, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealth(t *testing.T) {
	r := newTestEngine(t, nil)
	w, body := call(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

// approvedClerk registers a clerk, has the admin enable the account and
// returns the clerk's Authorization header.
func approvedClerk(t *testing.T, r http.Handler) []string {
	t.Helper()
	creds := map[string]string{"username": "clerk", "password": "s3cret!"}
	w, body := call(r, http.MethodPost, "/api/auth/login", creds)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := int64(body["account_id"].(float64))

	w, _ = call(r, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%d/disable", id),
		map[string]bool{"disable": false}, "X-Admin-Key", "admin")
	require.Equal(t, http.StatusOK, w.Code)

	w, body = call(r, http.MethodPost, "/api/auth/login", creds)
	require.Equal(t, http.StatusOK, w.Code)
	return []string{"Authorization", "Bearer " + body["token"].(string)}
}

func TestEndToEnd_NightlyUpdate(t *testing.T) {
	r := newTestEngine(t, nil)

	bearer := approvedClerk(t, r)

	w, body := call(r, http.MethodPost, "/api/stock",
		map[string]interface{}{"name": "Backstage passes to a TAFKAL80ETC concert", "sell_in": 11, "quality": 20}, bearer...)
	require.Equal(t, http.StatusCreated, w.Code)
	id := int64(body["item"].(map[string]interface{})["id"].(float64))

	w, _ = call(r, http.MethodPost, "/api/admin/advance", nil, "X-Admin-Key", "admin")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(r, http.MethodPost, "/api/admin/advance", nil, "X-Admin-Key", "admin")
	require.Equal(t, http.StatusOK, w.Code)

	// 11 -> 10 (+2: sell_in now 10), 10 -> 9 (+2).
	w, body = call(r, http.MethodGet, fmt.Sprintf("/api/stock/%d", id), nil, bearer...)
	require.Equal(t, http.StatusOK, w.Code)
	item := body["item"].(map[string]interface{})
	assert.Equal(t, float64(9), item["sell_in"])
	assert.Equal(t, float64(24), item["quality"])
}

func TestAdmin_IPWhitelist(t *testing.T) {
	r := newTestEngine(t, func(c *config.Config) {
		c.Server.AdminAllowedIPs = []string{"10.0.0.0/8"}
	})
	w, _ := call(r, http.MethodGet, "/api/admin/metrics", nil, "X-Admin-Key", "admin", "X-Real-IP", "192.168.1.5")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = call(r, http.MethodGet, "/api/admin/metrics", nil, "X-Admin-Key", "admin", "X-Real-IP", "10.1.2.3")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStock_Unauthenticated(t *testing.T) {
	r := newTestEngine(t, nil)
	w, _ := call(r, http.MethodGet, "/api/stock", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPendingAccount_CannotTouchStock(t *testing.T) {
	r := newTestEngine(t, nil)
	w, body := call(r, http.MethodPost, "/api/auth/login", map[string]string{"username": "mallory", "password": "guess!"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.NotContains(t, body, "token")

	w, _ = call(r, http.MethodPost, "/api/stock", map[string]interface{}{"name": "Vest", "sell_in": 1, "quality": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisabledAccount_LosesAccess(t *testing.T) {
	r := newTestEngine(t, nil)
	bearer := approvedClerk(t, r)

	w, body := call(r, http.MethodGet, "/api/auth/me", nil, bearer...)
	require.Equal(t, http.StatusOK, w.Code)
	id := int64(body["account"].(map[string]interface{})["id"].(float64))

	w, _ = call(r, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%d/disable", id),
		map[string]bool{"disable": true}, "X-Admin-Key", "admin")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(r, http.MethodPost, "/api/auth/refresh", nil, bearer...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(r, http.MethodPost, "/api/stock",
		map[string]interface{}{"name": "Vest", "sell_in": 1, "quality": 1}, bearer...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
