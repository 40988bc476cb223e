package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth struct {
	users map[string]*entity.User
	seen  []string
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*entity.User, error) {
	f.seen = append(f.seen, token)
	if token == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "You are not logged in! Please log in to get access.")
	}
	u, ok := f.users[token]
	if !ok {
		return nil, apperror.New(apperror.KindTokenInvalid, "Invalid token. Please log in again.")
	}
	return u, nil
}

func newAuth() *fakeAuth {
	return &fakeAuth{users: map[string]*entity.User{
		"cust":  {ID: "u1", Role: entity.RoleCustomer},
		"admin": {ID: "u2", Role: entity.RoleAdmin},
	}}
}

func protectedRouter(auth Authenticator, roles ...entity.Role) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{Protect(auth, nil)}
	if len(roles) > 0 {
		chain = append(chain, RestrictTo(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, u.ID+":"+c.GetString(CtxUserRoleKey))
	})
	r.GET("/x", chain...)
	return r
}

func TestProtect(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{name: "no token", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer cust") }, status: http.StatusOK, body: "u1:customer"},
		{name: "lowercase scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer cust") }, status: http.StatusOK, body: "u1:customer"},
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: helpers.AccessCookieName, Value: "admin"}) }, status: http.StatusOK, body: "u2:admin"},
		{name: "unknown token", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "basic scheme ignored", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic cust") }, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			protectedRouter(newAuth()).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestProtect_HeaderWinsOverCookie(t *testing.T) {
	auth := newAuth()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer admin")
	req.AddCookie(&http.Cookie{Name: helpers.AccessCookieName, Value: "cust"})
	w := httptest.NewRecorder()
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, "u2:admin", w.Body.String())
	assert.Equal(t, []string{"admin"}, auth.seen)
}

func TestRestrictTo(t *testing.T) {
	for token, want := range map[string]int{"cust": http.StatusForbidden, "admin": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		protectedRouter(newAuth(), entity.RoleAdmin).ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
		if want == http.StatusForbidden {
			assert.Contains(t, w.Body.String(), msgForbidden)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Body.String()
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Header().Get(RequestIDHeader))

	incoming := "0b6f2a8e-4c1d-4f57-9a39-2f0d54f1c3aa"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Body.String())
}

func TestRealIP(t *testing.T) {
	tests := map[string]struct {
		headers map[string]string
		want    string
	}{
		"cloudflare":     {headers: map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"}, want: "203.0.113.7"},
		"forwarded":      {headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, want: "198.51.100.1"},
		"x-real-ip":      {headers: map[string]string{"X-Real-IP": "198.51.100.9"}, want: "198.51.100.9"},
		"garbage header": {headers: map[string]string{"CF-Connecting-IP": "nope"}, want: "192.0.2.1"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(RealIP())
			r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

// fakeScripter answers the limiter script with an in-memory counter.
type fakeScripter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeScripter) run(ctx context.Context, keys []string) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[keys[0]]++
	cmd.SetVal([]interface{}{f.counts[keys[0]], int64(1500)})
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.run(ctx, keys)
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.run(ctx, keys)
}

func (f *fakeScripter) EvalRO(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.run(ctx, keys)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.run(ctx, keys)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func limitedRouter(rdb redis.Scripter, limit int, allow AllowFunc) *gin.Engine {
	r := gin.New()
	r.Use(RealIP(), RateLimit(rdb, limit, time.Minute, KeyByIP(), allow))
	r.Any("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, method, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/ping", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	rdb := &fakeScripter{counts: map[string]int64{}}
	r := limitedRouter(rdb, 2, nil)

	w := hit(r, http.MethodGet, "203.0.113.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "203.0.113.1").Code)

	w = hit(r, http.MethodGet, "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), msgTooManyRequests)

	// other clients have their own budget
	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "203.0.113.2").Code)
	// preflight is never counted
	assert.Equal(t, http.StatusOK, hit(r, http.MethodOptions, "203.0.113.1").Code)
}

func TestRateLimit_FailsOpenAndBypass(t *testing.T) {
	broken := &fakeScripter{counts: map[string]int64{}, err: errors.New("redis down")}
	assert.Equal(t, http.StatusOK, hit(limitedRouter(broken, 1, nil), http.MethodGet, "203.0.113.1").Code)

	rdb := &fakeScripter{counts: map[string]int64{}}
	r := limitedRouter(rdb, 1, AnyAllow(nil, AllowPrivateIP()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "10.1.2.3").Code)
	}
	assert.Empty(t, rdb.counts)

	r = limitedRouter(nil, 1, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "203.0.113.1").Code)
	}
}

func TestAllowPaths(t *testing.T) {
	allow := AllowPaths("/api/health/")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	assert.True(t, allow(c))
	c.Request = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	assert.False(t, allow(c))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16, 64))
	r.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	send := func(body, contentType string, chunked bool) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		if chunked {
			req.ContentLength = -1
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(`{"a":1}`, "application/json", false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(`{"a":"0123456789abcdef"}`, "application/json", false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(`{"a":"0123456789abcdef"}`, "application/json", true))
	// multipart bodies get the larger budget before the handler parses them
	assert.NotEqual(t, http.StatusRequestEntityTooLarge, send(`{"a":"0123456789abcdef"}`, "multipart/form-data; boundary=x", false))
}

func TestSecureHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecureHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
