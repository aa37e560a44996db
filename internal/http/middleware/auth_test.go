package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func sign(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func adminEngine(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", am.RequireAuth(), am.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()).String())
	})
	return r
}

func get(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAdminWithTokens(t *testing.T) {
	r := adminEngine(NewAuthMiddleware(logger.Nop(), testSecret, false))
	user := uuid.New()

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"admin", sign(t, user.String(), "Admin"), http.StatusOK},
		{"learner", sign(t, user.String(), ""), http.StatusForbidden},
		{"bad subject", sign(t, "someone", "admin"), http.StatusUnauthorized},
		{"garbage", "not-a-token", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, "Authorization", "Bearer "+tc.token)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
			if tc.want == http.StatusOK && w.Body.String() != user.String() {
				t.Fatalf("user = %s", w.Body.String())
			}
		})
	}
}

func TestRequireAdminWithAuthDisabled(t *testing.T) {
	r := adminEngine(NewAuthMiddleware(logger.Nop(), "", true))
	user := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(headerUserID, user.String())
	req.Header.Set(headerUserRole, "admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin header = %d", w.Code)
	}

	if w := get(r, headerUserID, user.String()); w.Code != http.StatusForbidden {
		t.Fatalf("no role = %d", w.Code)
	}
	if w := get(r, "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", w.Code)
	}
}
