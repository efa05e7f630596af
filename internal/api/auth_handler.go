package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/ratelimit"
)

const (
	refreshTokenCookieName         = "refresh_token"
	refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"
)

// AuthHandler 处理注册、登录、刷新、退出与改密。
type AuthHandler struct {
	db           *gorm.DB
	authService  *auth.AuthService
	redis        redis.UniversalClient
	logger       *slog.Logger
	limits       config.AuthConfig
	cookieDomain string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, limits config.AuthConfig, cookieDomain string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		db:           db,
		authService:  authService,
		redis:        redisClient,
		logger:       logger,
		limits:       limits,
		cookieDomain: strings.TrimSpace(cookieDomain),
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Register 创建新用户账号。
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	username := strings.TrimSpace(req.Username)
	logger := loggerFrom(c, h.logger).With(slog.String("username", username))

	var existing database.User
	err := h.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	switch {
	case err == nil:
		logger.Info("register conflict: user already exists")
		Conflict(c, "username already taken")
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		logger.Error("register lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{Username: username, PasswordHash: hashed}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并返回 Token。Redis 不可用时跳过限流与锁定。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	username := strings.ToLower(strings.TrimSpace(req.Username))
	logger := loggerFrom(c, h.logger).With(slog.String("username", username))

	// 每 IP+用户名 每小时限次。
	rateKey := "rate:login:" + c.ClientIP() + ":" + username + ":" + time.Now().UTC().Format("2006010215")
	if count, err := ratelimit.IncrWithTTL(ctx, h.redis, rateKey, time.Hour); err == nil && h.limits.LoginRateLimitPerHour > 0 && count > int64(h.limits.LoginRateLimitPerHour) {
		TooManyRequests(c, "rate limit exceeded")
		return
	}
	if ttl, _ := h.redis.TTL(ctx, lockKey(username)).Result(); ttl > 0 {
		TooManyRequests(c, "account temporarily locked")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("LOWER(username) = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			h.recordLoginFailure(ctx, username)
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.recordLoginFailure(ctx, username)
		Unauthorized(c)
		return
	}
	_ = h.redis.Del(ctx, failKey(username)).Err()

	h.issueTokens(c, logger, user.ID, user.MustChangePassword)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并轮换出新的令牌对，旧令牌进入黑名单。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if err := h.revokeRefreshToken(ctx, claims.ID, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.issueTokens(c, logger, user.ID, user.MustChangePassword)
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	logger := loggerFrom(c, h.logger)
	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		return
	}
	if err := h.revokeRefreshToken(c.Request.Context(), claims.ID, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.writeRefreshCookie(c, "", -1)
	c.Status(http.StatusOK)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,max=72"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,max=72"`
}

// ChangePassword 校验当前密码并更新为新密码，同时解除强制改密标记。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		BadRequest(c, "password confirmation does not match")
		return
	}
	if req.NewPassword == req.CurrentPassword {
		BadRequest(c, "new password must be different from current password")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logger.Info("change password: user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		Unauthorized(c)
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 旧的刷新令牌作废；Redis 出错只记录，新令牌照常下发。
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		if claims, err := h.authService.ValidateTokenOfType(token, auth.TokenTypeRefresh); err == nil && claims.ID != "" {
			if err := h.revokeRefreshToken(ctx, claims.ID, claims.ExpiresAt); err != nil {
				logger.Warn("change password: revoke refresh failed", slog.Any("error", err))
			}
		}
	}

	logger.Info("password changed")
	h.issueTokens(c, logger, user.ID, false)
}

// refreshClaims 取出并校验刷新令牌，失败时已写入响应。
func (h *AuthHandler) refreshClaims(c *gin.Context, logger *slog.Logger) (*auth.TokenClaims, bool) {
	token := h.extractRefreshToken(c)
	if token == "" {
		Unauthorized(c)
		return nil, false
	}
	claims, err := h.authService.ValidateTokenOfType(token, auth.TokenTypeRefresh)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return nil, false
	}
	if claims.ID == "" {
		logger.Info("refresh token missing jti")
		Unauthorized(c)
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) issueTokens(c *gin.Context, logger *slog.Logger, userID uint, mustChangePassword bool) {
	pair, err := h.authService.GenerateTokenPair(userID, mustChangePassword)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.writeRefreshCookie(c, pair.RefreshToken, int(h.authService.RefreshTokenTTL().Seconds()))
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:        pair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.authService.AccessTokenTTL().Seconds()),
		MustChangePassword: mustChangePassword,
	})
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

// writeRefreshCookie 写入 HttpOnly 刷新令牌 Cookie，maxAge < 0 表示清除。
func (h *AuthHandler) writeRefreshCookie(c *gin.Context, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c.Request),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.cookieDomain,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(c.Writer, cookie)
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, jti string, expiresAt *jwt.NumericDate) error {
	ttl := h.authService.RefreshTokenTTL()
	if expiresAt != nil {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, refreshTokenBlacklistKeyPrefix+jti, "revoked", ttl).Err()
}

// recordLoginFailure 累计失败次数，达到阈值后锁定账号一段时间。
func (h *AuthHandler) recordLoginFailure(ctx context.Context, username string) {
	count, err := ratelimit.IncrWithTTL(ctx, h.redis, failKey(username), h.limits.LoginLockTTL)
	if err != nil {
		return
	}
	if h.limits.LoginLockThreshold > 0 && count >= int64(h.limits.LoginLockThreshold) {
		_ = h.redis.Set(ctx, lockKey(username), "1", h.limits.LoginLockTTL).Err()
	}
}

func lockKey(username string) string { return "lock:login:" + username }
func failKey(username string) string { return "lock:login:fail:" + username }

func isHTTPSRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
