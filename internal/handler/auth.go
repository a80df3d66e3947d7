package handler

import (
	"errors"
	"strings"
	"time"

	"coinmarket/internal/config"
	"coinmarket/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxActorKey = "actor"
	ctxRoleKey  = "role"

	RoleAdmin = "admin"
)

// Claims sub 为用户 ID，role 仅用于管理接口
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken 签发 HS256 令牌，供本地调试和测试使用
func IssueToken(cfg config.AuthConfig, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func parseToken(cfg config.AuthConfig, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("令牌缺少 sub")
	}
	return claims, nil
}

// AuthMiddleware 校验 Bearer 令牌并把当前用户写入上下文
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			response.Unauthorized(c, "缺少身份令牌")
			return
		}

		claims, err := parseToken(cfg, strings.TrimSpace(raw))
		if err != nil {
			response.Unauthorized(c, "身份令牌无效")
			return
		}

		c.Set(ctxActorKey, claims.Subject)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRoleKey) != role {
			response.Forbidden(c, "没有权限")
			return
		}
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(ctxActorKey)
}
