package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/audit"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/config"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcryptCost is lowered by tests.
var bcryptCost = 12

// AuthHandler handles staff authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	audit  audit.Logger
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, auditLog audit.Logger, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, audit: auditLog, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login.
// The first login for an unknown username registers that staff account in
// the disabled state; an admin enables it before it can sign in.
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		acc = model.Account{
			Username:     req.Username,
			PasswordHash: string(hash),
			Status:       model.AccountDisabled,
		}
		if createErr := h.db.Create(&acc).Error; createErr != nil {
			// Lost a race with a concurrent first login for the same name.
			if isUniqueViolation(createErr) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}
		h.logger.Info("staff account registered", zap.String("username", acc.Username))
		h.logAudit(c, &acc.ID, start, "account pending approval")
		c.JSON(http.StatusAccepted, gin.H{
			"account_id": acc.ID,
			"username":   acc.Username,
			"registered": true,
			"status":     "pending",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			h.logAudit(c, &acc.ID, start, "invalid credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if acc.Status == model.AccountDisabled {
			h.logAudit(c, &acc.ID, start, "account disabled")
			c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}
	}

	token, err := h.issue(c.Request.Context(), acc.ID, acc.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Best-effort.
	_ = h.db.Model(&acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	})
	h.logAudit(c, &acc.ID, start, "")

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"username":   acc.Username,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenStr := mw.GetToken(c)
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(tokenStr))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The old token stops working.
// Disabled accounts lose their session instead of getting a new one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var acc model.Account
	err := h.db.WithContext(c.Request.Context()).First(&acc, accountID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))

	switch {
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account not found"})
		return
	case acc.Status == model.AccountDisabled:
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	newToken, err := h.issue(ctx, acc.ID, acc.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	var acc model.Account
	if err := h.db.First(&acc, mw.GetAccountID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc})
}

// issue signs a token and opens its session.
func (h *AuthHandler) issue(ctx context.Context, accountID int64, username string) (string, error) {
	token, err := mw.GenerateToken(accountID, username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := mw.OpenSession(ctx, h.cache, token, accountID, h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

func (h *AuthHandler) logAudit(c *gin.Context, accountID *int64, start time.Time, errMsg string) {
	if h.audit == nil {
		return
	}
	h.audit.Log(audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		AccountID:  accountID,
		Action:     audit.ActionLogin,
		Error:      errMsg,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
