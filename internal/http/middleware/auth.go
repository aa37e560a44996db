package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/http/response"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	RoleAdmin = "admin"
)

// AuthMiddleware resolves the requester from an HS256 bearer token's sub and role
// claims. With auth disabled it trusts X-User-ID and X-User-Role instead.
type AuthMiddleware struct {
	log      *logger.Logger
	secret   []byte
	disabled bool
}

func NewAuthMiddleware(baseLog *logger.Logger, secret string, disabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		log:      baseLog.With("middleware", "AuthMiddleware"),
		secret:   []byte(secret),
		disabled: disabled,
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd, err := am.resolve(c)
		if err != nil {
			am.log.Debug("Rejected request", "path", c.FullPath(), "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), rd)
		if td := ctxutil.GetTraceData(ctx); td != nil {
			td.UserID = rd.UserID.String()
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.Role != RoleAdmin {
			am.log.Debug("Rejected non-admin request", "path", c.FullPath(), "user_id", ctxutil.UserID(c.Request.Context()))
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("admin role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) resolve(c *gin.Context) (*ctxutil.RequestData, error) {
	if am.disabled {
		id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(headerUserID)))
		if err != nil || id == uuid.Nil {
			return nil, errors.New("missing or invalid X-User-ID")
		}
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole)))
		return &ctxutil.RequestData{UserID: id, Role: role}, nil
	}
	token := bearerToken(c)
	if token == "" {
		return nil, errors.New("missing or invalid token")
	}
	claims, err := am.ParseToken(token)
	if err != nil {
		return nil, err
	}
	id, _ := uuid.Parse(claims.Subject)
	return &ctxutil.RequestData{UserID: id, Role: claims.Role, TokenString: token}, nil
}

// Claims are the token claims the API reads.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// ParseToken validates token and requires its subject to be a user id.
func (am *AuthMiddleware) ParseToken(token string) (*Claims, error) {
	if len(am.secret) == 0 {
		return nil, errors.New("auth is not configured")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid or expired token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return nil, errors.New("invalid subject in token")
	}
	claims.Role = strings.ToLower(strings.TrimSpace(claims.Role))
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
