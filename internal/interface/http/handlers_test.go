package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	"github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/memory"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

func init() {
	gin.SetMode(gin.TestMode)
	helpers.PasswordCost = bcrypt.MinCost
}

type recordingNotifier struct{ links []string }

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _, _ string, resetURL string) error {
	n.links = append(n.links, resetURL)
	return nil
}

type memImages struct{ n int }

func (m *memImages) Upload(_ context.Context, filename, _ string, r io.Reader, _ int64) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.n++
	return "https://cdn.test/products/" + filename, nil
}

type testServer struct {
	engine   *gin.Engine
	users    *memory.UserRepository
	notifier *recordingNotifier
	images   *memImages
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := helpers.NewDiscardLogger()
	users := memory.NewUserRepository()
	products := memory.NewProductRepository(users)
	notifier := &recordingNotifier{}
	images := &memImages{}

	jwt := helpers.NewJWTManager("a-secret", "r-secret", time.Hour, 24*time.Hour)
	authSvc := application.NewAuthService(users, jwt, notifier, logger, 10*time.Minute)
	productSvc := application.NewProductService(products, images, nil, logger)

	auth := NewAuthHandler(authSvc, helpers.NewCookie("", false, 24*time.Hour), logger, "")
	prod := NewProductHandler(productSvc, logger)
	protect := middleware.Protect(authSvc, logger)
	admin := middleware.RestrictTo(entity.RoleAdmin)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")
	a := api.Group("/auth")
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.POST("/refresh-token", auth.Refresh)
	a.POST("/forgotPassword", auth.ForgotPassword)
	a.PATCH("/resetPassword/:token", auth.ResetPassword)
	a.GET("/me", protect, auth.Me)
	a.GET("/logout", auth.Logout)

	p := api.Group("/products")
	p.GET("", prod.List)
	p.GET("/search", prod.Search)
	p.GET("/:id", prod.Get)
	p.POST("", protect, admin, prod.Create)
	p.PUT("/:id", protect, admin, prod.Update)
	p.DELETE("/:id", protect, admin, prod.Delete)
	p.POST("/:id/reviews", protect, prod.AddReview)

	return &testServer{engine: r, users: users, notifier: notifier, images: images}
}

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   struct {
		Kind   string            `json:"kind"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) register(t *testing.T, email string, role entity.Role) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Test User", "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return env.Data["token"].(string)
}

func validProduct() gin.H {
	return gin.H{
		"name":        "Pixel 9",
		"description": "A phone with a very good camera",
		"price":       799.0,
		"category":    "Phones",
		"stock":       3,
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ada", "email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, env.Data["token"])
	assert.NotEmpty(t, env.Data["refreshToken"])
	user := env.Data["user"].(map[string]any)
	assert.Equal(t, "customer", user["role"])
	assert.NotContains(t, w.Body.String(), "password")

	w, env = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	token := env.Data["token"].(string)
	assert.Equal(t, "Bearer "+token, w.Header().Get("Authorization"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), helpers.AccessCookieName+"="+token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

	w, env = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", env.Data["user"].(map[string]any)["email"])

	w, env = s.do(t, http.MethodPost, "/api/auth/refresh-token", "", gin.H{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_invalid", env.Error.Kind)
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com", "")

	for _, body := range []gin.H{
		{"email": "ada@example.com", "password": "wrongpass"},
		{"email": "nobody@example.com", "password": "secret123"},
	} {
		w, env := s.do(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Incorrect email or password", env.Message)
	}
}

func TestRegister_ValidationAndDuplicate(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "A", "email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error.Kind)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "password")

	s.register(t, "ada@example.com", "")
	w, env = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ada", "email": "ADA@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate_email", env.Error.Kind)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w, env = s.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid json", env.Error.Fields["payload"])
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com", "")

	w, env := s.do(t, http.MethodPost, "/api/auth/forgotPassword", "", gin.H{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Token sent to email!", env.Data["message"])
	require.Len(t, s.notifier.links, 1)

	link := s.notifier.links[0]
	prefix := "http://example.com" + ResetPasswordPath
	require.True(t, strings.HasPrefix(link, prefix), link)
	token := strings.TrimPrefix(link, prefix)

	w, _ = s.do(t, http.MethodPatch, ResetPasswordPath+token, "", gin.H{"password": "newsecret1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPatch, ResetPasswordPath+token, "", gin.H{"password": "another12"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is invalid or has expired", env.Message)

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "newsecret1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPost, "/api/auth/forgotPassword", "", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", env.Error.Kind)
}

func TestResetLink_UsesConfiguredBase(t *testing.T) {
	h := &AuthHandler{ResetURL: "https://shop.example/reset/"}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, "https://shop.example/reset/abc", h.resetLink(c)("abc"))

	h.ResetURL = ""
	c.Request.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://example.com/api/auth/resetPassword/abc", h.resetLink(c)("abc"))
}

func TestProducts_AdminOnlyWrites(t *testing.T) {
	s := newTestServer(t)
	customer := s.register(t, "cust@example.com", entity.RoleCustomer)
	admin := s.register(t, "admin@example.com", entity.RoleAdmin)

	w, _ := s.do(t, http.MethodPost, "/api/products", "", validProduct())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/products", customer, validProduct())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Error.Kind)

	w, env = s.do(t, http.MethodPost, "/api/products", admin, validProduct())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := env.Data["product"].(map[string]any)
	id := p["id"].(string)
	assert.Equal(t, 4.5, p["averageRating"])
	assert.Equal(t, 0.0, p["numOfReviews"])

	w, env = s.do(t, http.MethodPut, "/api/products/"+id, admin, gin.H{"price": 699.0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 699.0, env.Data["product"].(map[string]any)["price"])
	assert.Equal(t, "Pixel 9", env.Data["product"].(map[string]any)["name"])

	w, env = s.do(t, http.MethodPut, "/api/products/"+id, admin, gin.H{"price": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Fields, "price")

	w, _ = s.do(t, http.MethodDelete, "/api/products/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())

	w, env = s.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No product found with that ID", env.Message)
}

func TestProducts_ListAndReview(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@example.com", entity.RoleAdmin)
	customer := s.register(t, "cust@example.com", entity.RoleCustomer)

	var ids []string
	for _, price := range []float64{5, 20, 40, 60} {
		body := validProduct()
		body["price"] = price
		_, env := s.do(t, http.MethodPost, "/api/products", admin, body)
		ids = append(ids, env.Data["product"].(map[string]any)["id"].(string))
	}

	w, env := s.do(t, http.MethodGet, "/api/products?price[gte]=10&price[lte]=50&sort=-price", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, env.Data["results"])
	assert.Equal(t, 2.0, env.Data["total"])
	products := env.Data["products"].([]any)
	assert.Equal(t, 40.0, products[0].(map[string]any)["price"])
	assert.Equal(t, 20.0, products[1].(map[string]any)["price"])

	w, env = s.do(t, http.MethodGet, "/api/products?password[ne]=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error.Kind)

	w, env = s.do(t, http.MethodPost, "/api/products/"+ids[0]+"/reviews", customer, gin.H{"rating": 4, "comment": "nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Review added", env.Data["message"])

	w, env = s.do(t, http.MethodPost, "/api/products/"+ids[0]+"/reviews", customer, gin.H{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate_review", env.Error.Kind)

	w, _ = s.do(t, http.MethodPost, "/api/products/"+ids[0]+"/reviews", "", gin.H{"rating": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, env = s.do(t, http.MethodGet, "/api/products/"+ids[0], "", nil)
	p := env.Data["product"].(map[string]any)
	assert.Equal(t, 4.0, p["averageRating"])
	assert.Equal(t, 1.0, p["numOfReviews"])
	review := p["ratings"].([]any)[0].(map[string]any)
	assert.Equal(t, "Test User", review["userName"])

	w, env = s.do(t, http.MethodGet, "/api/products/search?q=camera", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4.0, env.Data["results"])

	for _, path := range []string{"/api/products/search?q=camera&limit=abc", "/api/products?limit=abc"} {
		w, env = s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "validation_error", env.Error.Kind, path)
		assert.Contains(t, env.Error.Fields, "limit", path)
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, contentType := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProducts_MultipartCreate(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@example.com", entity.RoleAdmin)
	fields := map[string]string{
		"name":        "Camera",
		"description": "Takes beautiful pictures",
		"price":       "250.5",
		"category":    "Photo",
		"stock":       "7",
	}

	body, ct := multipartBody(t, fields, map[string]string{"front.jpg": "image/jpeg", "back.png": "image/png"})
	req := httptest.NewRequest(http.MethodPost, "/api/products", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	w, env := s.serve(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	p := env.Data["product"].(map[string]any)
	assert.Equal(t, 250.5, p["price"])
	assert.Equal(t, 7.0, p["stock"])
	assert.Len(t, p["images"], 2)
	assert.Equal(t, 2, s.images.n)

	body, ct = multipartBody(t, fields, map[string]string{"notes.txt": "text/plain"})
	req = httptest.NewRequest(http.MethodPost, "/api/products", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	w, env = s.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not an image! Please upload only images.", env.Error.Fields["images[0]"])

	bad := map[string]string{"name": "Camera", "price": "cheap"}
	body, ct = multipartBody(t, bad, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/products", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	w, env = s.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must be a number", env.Error.Fields["price"])
}
