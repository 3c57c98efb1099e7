package handler

import (
	"net/http"
	"time"

	"reinf/internal/middleware"
	"reinf/internal/service"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, authMW *middleware.Auth) {
	statsGroup := router.Group("/api/statistics")
	statsGroup.Use(authMW.RequireAuth())
	{
		statsGroup.GET("", h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Entry counts per workflow stage, declared and sent profit totals and the top companies of a year or quarter
// @Tags         statistics
// @Produce      json
// @Param        ano        query  int  false  "Year (default: current year)"
// @Param        trimestre  query  int  false  "Quarter (1-4); omit for the whole year"
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      400 {object} response.Response
// @Failure      401 {object} response.Response
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	year, err := queryInt(c, "ano")
	if err != nil {
		writeError(c, err)
		return
	}
	if year == 0 {
		year = time.Now().Year()
	}
	quarter, err := queryInt(c, "trimestre")
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), year, quarter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
