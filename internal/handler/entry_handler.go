package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"reinf/internal/apperr"
	"reinf/internal/middleware"
	"reinf/internal/service"
	"reinf/pkg/pagination"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
)

type EntryHandler struct {
	entryService service.EntryService
}

func NewEntryHandler(entryService service.EntryService) *EntryHandler {
	return &EntryHandler{entryService: entryService}
}

func (h *EntryHandler) RegisterRoutes(router *gin.RouterGroup, authMW *middleware.Auth) {
	entries := router.Group("/api/entries")
	entries.Use(authMW.RequireAuth())
	{
		entries.GET("", h.ListEntries)
		entries.GET("/:id", h.GetEntry)
		entries.POST("", h.CreateEntry)
		entries.PUT("/:id/profits", h.FillProfits)
		entries.POST("/:id/advance", h.AdvanceEntry)
	}
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", apperr.ErrValidation, key)
	}
	return v, nil
}

var entrySortKeys = pagination.SortKeys{
	"ano":        "ano",
	"trimestre":  "trimestre",
	"status":     "status",
	"created_at": "created_at",
}

// ListEntries returns paginated declaration entries
// @Summary      List declaration entries
// @Description  Filters by year, quarter, workflow status and company
// @Tags         entries
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default: 1)"
// @Param        limit       query     int     false  "Items per page (default: 20)"
// @Param        ano         query     int     false  "Year"
// @Param        trimestre   query     int     false  "Quarter (1-4)"
// @Param        status      query     string  false  "Workflow status"
// @Param        company_id  query     string  false  "Company ID"
// @Param        sort        query     string  false  "ano, trimestre, status or created_at; prefix with - for descending"
// @Success      200         {object}  response.Response{data=response.PagedData}
// @Failure      400         {object}  response.Response
// @Router       /api/entries [get]
func (h *EntryHandler) ListEntries(c *gin.Context) {
	p := pagination.Parse(c, entrySortKeys)

	year, err := queryInt(c, "ano")
	if err != nil {
		writeError(c, err)
		return
	}
	quarter, err := queryInt(c, "trimestre")
	if err != nil {
		writeError(c, err)
		return
	}

	filter := service.EntryFilter{
		Year:      year,
		Quarter:   quarter,
		Status:    c.Query("status"),
		CompanyID: c.Query("company_id"),
		OrderBy:   p.OrderBy,
	}

	entries, total, err := h.entryService.ListEntries(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, entries, p.Page, p.Limit, total))
}

// GetEntry returns a single declaration entry
// @Summary      Get declaration entry
// @Tags         entries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  response.Response{data=service.EntryResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/entries/{id} [get]
func (h *EntryHandler) GetEntry(c *gin.Context) {
	entry, err := h.entryService.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// CreateEntry opens a quarterly declaration for a company
// @Summary      Create declaration entry
// @Description  Starts the workflow in pendente_contabil. One entry per company, year and quarter.
// @Tags         entries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateEntryRequest  true  "Entry"
// @Success      201      {object}  response.Response{data=service.EntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.entryService.CreateEntry(c.Request.Context(), actorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// FillProfits records the three monthly profit amounts
// @Summary      Fill monthly profits
// @Tags         entries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Entry ID"
// @Param        payload  body      service.FillProfitsRequest  true  "Profits"
// @Success      200      {object}  response.Response{data=service.EntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/entries/{id}/profits [put]
func (h *EntryHandler) FillProfits(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.FillProfitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.entryService.FillProfits(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// AdvanceEntry moves the entry to the next workflow stage
// @Summary      Advance workflow stage
// @Description  Body is optional. expected_status makes the advance conditional on the status the caller last saw.
// @Tags         entries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true   "Entry ID"
// @Param        payload  body      service.AdvanceEntryRequest  false  "Expected status"
// @Success      200      {object}  response.Response{data=service.EntryResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/entries/{id}/advance [post]
func (h *EntryHandler) AdvanceEntry(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.AdvanceEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	entry, err := h.entryService.AdvanceEntry(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}
