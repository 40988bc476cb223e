package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
)

type ProductHandler struct {
	Svc    *application.ProductService
	Logger *logrus.Logger

	// MaxMemory is the part of a multipart body kept in memory; the rest spills to temp files.
	MaxMemory int64
}

func NewProductHandler(svc *application.ProductService, logger *logrus.Logger) *ProductHandler {
	return &ProductHandler{Svc: svc, Logger: logger, MaxMemory: 8 << 20}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// List GET /api/products
func (h *ProductHandler) List(c *gin.Context) {
	page, err := h.Svc.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"results":  len(page.Products),
		"total":    page.Total,
		"products": page.Products,
	}, "", gin.H{"page": page.Page, "limit": page.Limit})
}

// Search GET /api/products/search?q=
func (h *ProductHandler) Search(c *gin.Context) {
	size, err := application.ParseSearchLimit(c.Query("limit"))
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	products, err := h.Svc.Search(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": len(products), "products": products}, "", nil)
}

// Get GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"product": p}, "", nil)
}

// Create POST /api/products (JSON or multipart with "images" files)
func (h *ProductHandler) Create(c *gin.Context) {
	in, uploads, cleanup, ok := h.readProduct(c)
	if !ok {
		return
	}
	defer cleanup()

	p, err := h.Svc.Create(c.Request.Context(), in, uploads)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"product": p}, "product created", nil)
}

// Update PUT /api/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	in, uploads, cleanup, ok := h.readProduct(c)
	if !ok {
		return
	}
	defer cleanup()

	p, err := h.Svc.Update(c.Request.Context(), c.Param("id"), in, uploads)
	if err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"product": p}, "product updated", nil)
}

// Delete DELETE /api/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddReview POST /api/products/:id/reviews {rating, comment}
func (h *ProductHandler) AddReview(c *gin.Context) {
	var req reviewRequest
	if !bindJSON(c, &req, h.Logger) {
		return
	}
	userID := c.GetString(middleware.CtxUserIDKey)
	if _, err := h.Svc.AddReview(c.Request.Context(), c.Param("id"), userID, req.Rating, req.Comment); err != nil {
		response.FromError(c, err, h.Logger)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"message": "Review added"}, "Review added", nil)
}

// readProduct reads a ProductInput from a JSON body or a multipart form.
// cleanup closes the opened upload files.
func (h *ProductHandler) readProduct(c *gin.Context) (application.ProductInput, []application.ImageUpload, func(), bool) {
	var in application.ProductInput
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if !bindJSON(c, &in, h.Logger) {
			return in, nil, noop, false
		}
		return in, nil, noop, true
	}

	if err := c.Request.ParseMultipartForm(h.MaxMemory); err != nil {
		writeBindError(c, err, h.Logger)
		return in, nil, noop, false
	}
	form := c.Request.MultipartForm
	in, fields := inputFromForm(form)
	if fields != nil {
		_ = form.RemoveAll()
		response.FromError(c, apperror.Validation(fields), h.Logger)
		return in, nil, noop, false
	}

	uploads, closeFiles, err := openUploads(form.File["images"])
	if err != nil {
		_ = form.RemoveAll()
		response.FromError(c, apperror.Internal(err), h.Logger)
		return in, nil, noop, false
	}
	return in, uploads, func() {
		closeFiles()
		_ = form.RemoveAll()
	}, true
}

func openUploads(files []*multipart.FileHeader) ([]application.ImageUpload, func(), error) {
	uploads := make([]application.ImageUpload, 0, len(files))
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		uploads = append(uploads, application.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, cleanup, nil
}

// inputFromForm reads the text fields of a multipart product form. Absent
// fields stay nil; malformed numbers are reported per field.
func inputFromForm(form *multipart.Form) (application.ProductInput, map[string]string) {
	var in application.ProductInput
	fields := map[string]string{}
	get := func(key string) (string, bool) {
		v, ok := form.Value[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	if v, ok := get("name"); ok {
		in.Name = &v
	}
	if v, ok := get("description"); ok {
		in.Description = &v
	}
	if v, ok := get("category"); ok {
		in.Category = &v
	}
	if v, ok := get("price"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			fields["price"] = "must be a number"
		} else {
			in.Price = &f
		}
	}
	if v, ok := get("stock"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			fields["stock"] = "must be an integer"
		} else {
			in.Stock = &n
		}
	}
	if len(fields) == 0 {
		return in, nil
	}
	return in, fields
}
