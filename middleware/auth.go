package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/config"
)

const (
	AccountIDKey = "account_id"
	UsernameKey  = "username"
	TokenKey     = "token"
)

// ErrSessionExpired means the token is well-formed but its session was
// revoked or timed out.
var ErrSessionExpired = errors.New("session expired")

// SessionKey is the cache key that keeps a staff token alive. Logging out
// deletes it, which revokes the token before its JWT expiry.
func SessionKey(token string) string {
	return "session:" + token
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return tok, tok != ""
}

// SessionGenKey holds an account's session generation. Sessions opened
// under an older generation are dead.
func SessionGenKey(accountID int64) string {
	return "session_gen:" + strconv.FormatInt(accountID, 10)
}

func sessionGen(ctx context.Context, c cache.Cache, accountID int64) (string, error) {
	v, err := c.Get(ctx, SessionGenKey(accountID))
	if cache.IsNotFound(err) {
		return "0", nil
	}
	return v, err
}

// OpenSession makes tokenStr live for ttl under the account's current
// session generation.
func OpenSession(ctx context.Context, c cache.Cache, tokenStr string, accountID int64, ttl time.Duration) error {
	gen, err := sessionGen(ctx, c, accountID)
	if err != nil {
		return err
	}
	return c.Set(ctx, SessionKey(tokenStr), gen, ttl)
}

// RevokeSessions kills every session opened so far for accountID.
func RevokeSessions(ctx context.Context, c cache.Cache, accountID int64) error {
	gen, err := sessionGen(ctx, c, accountID)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(gen, 10, 64)
	if err != nil {
		n = 0
	}
	return c.Set(ctx, SessionGenKey(accountID), strconv.FormatInt(n+1, 10), 0)
}

// Authenticate parses tokenStr and confirms its session is still live.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, tokenStr string) (*Claims, error) {
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return nil, err
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	opened, err := c.Get(cacheCtx, SessionKey(tokenStr))
	if cache.IsNotFound(err) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	gen, err := sessionGen(cacheCtx, c, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if opened != gen {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

// Auth requires a valid staff Bearer token with a live session.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr, ok := BearerToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := Authenticate(ctx.Request.Context(), sec, c, tokenStr)
		if errors.Is(err, ErrSessionExpired) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Set(UsernameKey, claims.Username)
		ctx.Set(TokenKey, tokenStr)
		ctx.Next()
	}
}

// GetAccountID retrieves the authenticated account ID from the Gin context.
func GetAccountID(c *gin.Context) int64 {
	return c.GetInt64(AccountIDKey)
}

// GetUsername retrieves the authenticated staff username.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// GetToken returns the raw Bearer token accepted by Auth.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
