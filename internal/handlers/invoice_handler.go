package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/services/importer"
	"invoice-bookkeeping-backend/internal/services/invoices"
	"invoice-bookkeeping-backend/internal/services/query"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoices       *invoices.Service
	query          *query.Engine
	importer       *importer.Importer
	maxUploadBytes int64
}

func NewInvoiceHandler(svc *invoices.Service, q *query.Engine, im *importer.Importer, maxUploadBytes int64) *InvoiceHandler {
	return &InvoiceHandler{invoices: svc, query: q, importer: im, maxUploadBytes: maxUploadBytes}
}

type createInvoiceRequest struct {
	Supplier      string          `json:"supplier" binding:"required,max=255"`
	Branch        string          `json:"branch" binding:"required,branch"`
	Date          string          `json:"date" binding:"required,isodate"`
	InvoiceNumber string          `json:"invoiceNumber" binding:"required,max=100"`
	Total         json.RawMessage `json:"total" binding:"required"`
	Description   string          `json:"description" binding:"max=1000"`
}

type updateInvoiceRequest struct {
	Supplier      *string         `json:"supplier" binding:"omitempty,max=255"`
	Branch        *string         `json:"branch" binding:"omitempty,branch"`
	Date          *string         `json:"date" binding:"omitempty,isodate"`
	InvoiceNumber *string         `json:"invoiceNumber" binding:"omitempty,max=100"`
	Total         json.RawMessage `json:"total"`
	Description   *string         `json:"description" binding:"omitempty,max=1000"`
	Paid          *bool           `json:"paid"`
	PaidDate      *string         `json:"paidDate" binding:"omitempty,isodate"`
}

// parseTotal accepts raw money text ("Rp 1.000,00", "165.522") or a bare
// JSON number and normalizes it.
func parseTotal(raw json.RawMessage) (currency.Amount, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return currency.Zero, apperror.Validation("total", "is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return currency.Zero, apperror.Validation("total", "must be a string or number")
		}
	}
	total, err := currency.Normalize(text)
	if err != nil {
		return currency.Zero, apperror.Validation("total", err.Error())
	}
	return total, nil
}

// Create handles POST /api/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	total, err := parseTotal(req.Total)
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), invoices.CreateInput{
		Supplier:      req.Supplier,
		Branch:        req.Branch,
		Date:          req.Date,
		InvoiceNumber: req.InvoiceNumber,
		Total:         total,
		Description:   req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

type paginatedQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
	Status string `form:"status"`
	Sort   string `form:"sort"`
	All    bool   `form:"all"`
}

// Paginated handles GET /api/invoices/paginated
func (h *InvoiceHandler) Paginated(c *gin.Context) {
	var q paginatedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}
	res, err := h.query.Query(c.Request.Context(), query.Params{
		Page:     q.Page,
		PageSize: q.Limit,
		Search:   q.Search,
		Status:   q.Status,
		Sort:     q.Sort,
		All:      q.All,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type listQuery struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Search string `form:"search"`
	Status string `form:"status"`
}

// List handles GET /api/invoices and returns a bare array.
func (h *InvoiceHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}
	items, err := h.query.List(c.Request.Context(), query.ListParams{
		Limit:  q.Limit,
		Offset: q.Offset,
		Search: q.Search,
		Status: q.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

// Update handles PATCH /api/invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	in := invoices.UpdateInput{
		Supplier:      req.Supplier,
		Branch:        req.Branch,
		Date:          req.Date,
		InvoiceNumber: req.InvoiceNumber,
		Description:   req.Description,
		Paid:          req.Paid,
		PaidDate:      req.PaidDate,
	}
	if len(req.Total) > 0 && !bytes.Equal(bytes.TrimSpace(req.Total), []byte("null")) {
		total, err := parseTotal(req.Total)
		if err != nil {
			respondError(c, err)
			return
		}
		in.Total = &total
	}

	inv, err := h.invoices.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	if err := h.invoices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "invoice deleted"})
}

// Upload handles POST /api/invoices/upload: a multipart "file" holding a
// CSV export. dryRun and skipDuplicates (default true) come from the form
// or query string.
func (h *InvoiceHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, apperror.Validation("file", "file required"))
		return
	}
	defer file.Close()

	opts := importer.Options{SkipDuplicates: true}
	if opts.DryRun, err = formBool(c, "dryRun", false); err != nil {
		respondError(c, err)
		return
	}
	if opts.SkipDuplicates, err = formBool(c, "skipDuplicates", true); err != nil {
		respondError(c, err)
		return
	}

	res, err := h.importer.ImportCSV(c.Request.Context(), file, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": header.Filename, "result": res})
}

func formBool(c *gin.Context, key string, def bool) (bool, error) {
	raw, ok := c.GetPostForm(key)
	if !ok {
		raw, ok = c.GetQuery(key)
	}
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.Validation(key, "must be true or false")
	}
	return v, nil
}
