package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/record-console/internal/auth"
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/pkg/request"
	"github.com/nekogravitycat/record-console/internal/pkg/response"
	"github.com/nekogravitycat/record-console/internal/record"
)

// RecordHandler serves the record endpoints of one family.
type RecordHandler struct {
	service *console.Service
	family  catalog.Family
}

func NewHandler(service *console.Service, family catalog.Family) *RecordHandler {
	return &RecordHandler{
		service: service,
		family:  family,
	}
}

// List retrieves a paginated list of all records of the family.
func (h *RecordHandler) List(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	rows, total, err := h.service.List(c.Request.Context(), auth.GetSession(c), h.family, record.Page{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(newRecordResponses(rows), req.Page, req.PageSize, total))
}

func (h *RecordHandler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	row, err := h.service.Get(c.Request.Context(), auth.GetSession(c), h.family, req.ID)
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusOK, NewRecordResponse(row))
}

// Search runs a single-criterion search.
func (h *RecordHandler) Search(c *gin.Context) {
	var req CriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	rows, err := h.service.Search(c.Request.Context(), auth.GetSession(c), h.family, req.toCriterion())
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Items: newRecordResponses(rows), Count: len(rows)})
}

// AdvancedSearch ANDs two or more criteria.
func (h *RecordHandler) AdvancedSearch(c *gin.Context) {
	var req AdvancedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	rows, err := h.service.AdvancedSearch(c.Request.Context(), auth.GetSession(c), h.family, req.toCriteria())
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Items: newRecordResponses(rows), Count: len(rows)})
}

func (h *RecordHandler) Create(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	row, err := h.service.Create(c.Request.Context(), auth.GetSession(c), h.family, record.Fields(req.Fields))
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusCreated, NewRecordResponse(row))
}

// UpdateField changes a single field of a record.
func (h *RecordHandler) UpdateField(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateFieldRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
		return
	}

	row, err := h.service.UpdateField(c.Request.Context(), auth.GetSession(c), h.family, uri.ID, body.Field, body.Value)
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.JSON(http.StatusOK, NewRecordResponse(row))
}

func (h *RecordHandler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), auth.GetSession(c), h.family, req.ID); err != nil {
		response.Error(c, err, MapError)
		return
	}

	c.Status(http.StatusNoContent)
}

// Undo reverses the session's latest mutation of the family.
// A reapply failure is reported with 409 and the reason.
func (h *RecordHandler) Undo(c *gin.Context) {
	res, err := h.service.Undo(c.Request.Context(), auth.GetSession(c), h.family)
	if err != nil {
		response.Error(c, err, MapError)
		return
	}

	status := http.StatusOK
	if res.Status == ledger.StatusReapplyFailed {
		status = http.StatusConflict
	}
	c.JSON(status, NewUndoResponse(res))
}

func (h *RecordHandler) UndoDepth(c *gin.Context) {
	depth, err := h.service.UndoDepth(auth.GetSession(c), h.family)
	if err != nil {
		response.Error(c, err, MapError)
		return
	}
	c.JSON(http.StatusOK, UndoDepthResponse{Depth: depth})
}

// CatalogHandler serves field metadata for building search and update menus.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

func (h *CatalogHandler) Get(c *gin.Context) {
	family, err := h.catalog.ParseFamily(c.Param("family"))
	if err != nil {
		response.Error(c, err, MapError)
		return
	}
	if !auth.GetSession(c).Capabilities().CanView(family) {
		response.Error(c, console.ErrForbidden, MapError)
		return
	}

	fields, err := h.catalog.Fields(family)
	if err != nil {
		response.Error(c, err, MapError)
		return
	}
	c.JSON(http.StatusOK, NewCatalogResponse(family, fields))
}
