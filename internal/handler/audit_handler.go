package handler

import (
	"net/http"

	"reinf/internal/middleware"
	"reinf/internal/service"
	"reinf/pkg/pagination"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, authMW *middleware.Auth) {
	group := router.Group("/api/audit-logs")
	group.Use(authMW.RequireAuth(), authMW.RequireAdmin())
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns the audit trail, newest first
// @Summary      Get audit logs
// @Description  Paginated audit trail of workflow and administrative changes
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Param        action     query     string  false  "Action, e.g. ADVANCE_ENTRY"
// @Param        entity_id  query     string  false  "ID of the changed entity"
// @Param        user_id    query     string  false  "ID of the acting user"
// @Success      200    {object}  response.Response{data=response.PagedData}
// @Failure      400    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c, nil)
	query := service.AuditQuery{
		Action:   c.Query("action"),
		EntityID: c.Query("entity_id"),
		UserID:   c.Query("user_id"),
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), query, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, p.Page, p.Limit, total))
}
