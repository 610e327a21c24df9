package handler

import (
	"net/http"
	"strconv"
	"strings"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"
	"invoice-bookkeeping-backend/internal/services/matching"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SupplierHandler struct {
	suppliers *repository.SupplierRepository
	resolver  *matching.Resolver
}

func NewSupplierHandler(repo *repository.SupplierRepository, resolver *matching.Resolver) *SupplierHandler {
	return &SupplierHandler{suppliers: repo, resolver: resolver}
}

type supplierRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// Names handles GET /api/suppliers/list for the submission form.
func (h *SupplierHandler) Names(c *gin.Context) {
	names, err := h.suppliers.Names(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// Suggest handles GET /api/suppliers/suggest?q=
func (h *SupplierHandler) Suggest(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("limit"))
	names, err := h.resolver.Suggest(c.Request.Context(), c.Query("q"), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *SupplierHandler) List(c *gin.Context) {
	all, err := h.suppliers.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *SupplierHandler) Create(c *gin.Context) {
	var req supplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, apperror.Validation("name", "is required"))
		return
	}
	s := &models.Supplier{ID: uuid.Must(uuid.NewV7()), Name: name}
	if err := h.suppliers.Create(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "supplier": s})
}

func (h *SupplierHandler) Rename(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperror.NotFound("supplier", c.Param("id")))
		return
	}
	var req supplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, apperror.Validation("name", "is required"))
		return
	}
	s, err := h.suppliers.Rename(c.Request.Context(), id, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "supplier": s})
}

func (h *SupplierHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperror.NotFound("supplier", c.Param("id")))
		return
	}
	if err := h.suppliers.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "supplier deleted"})
}
