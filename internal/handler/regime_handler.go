package handler

import (
	"net/http"

	"reinf/internal/middleware"
	"reinf/internal/service"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
)

type RegimeHandler struct {
	regimeService service.RegimeService
}

func NewRegimeHandler(regimeService service.RegimeService) *RegimeHandler {
	return &RegimeHandler{regimeService: regimeService}
}

func (h *RegimeHandler) RegisterRoutes(router *gin.RouterGroup, authMW *middleware.Auth) {
	regimes := router.Group("/api/regimes")
	regimes.Use(authMW.RequireAuth())
	{
		regimes.GET("", h.ListRegimes)
		regimes.POST("", authMW.RequireAdmin(), h.CreateRegime)
		regimes.PUT("/:id", authMW.RequireAdmin(), h.UpdatePeriod)
		regimes.DELETE("/:id", authMW.RequireAdmin(), h.DeleteRegime)
	}
}

// ListRegimes returns each tax regime with its default reporting period
// @Summary      List tax regimes
// @Tags         regimes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RegimeResponse}
// @Router       /api/regimes [get]
func (h *RegimeHandler) ListRegimes(c *gin.Context) {
	regimes, err := h.regimeService.ListRegimes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, regimes))
}

// CreateRegime registers a tax regime
// @Summary      Create tax regime
// @Tags         regimes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRegimeRequest  true  "Regime"
// @Success      201      {object}  response.Response{data=service.RegimeResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/regimes [post]
func (h *RegimeHandler) CreateRegime(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.CreateRegimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	regime, err := h.regimeService.CreateRegime(c.Request.Context(), actorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, regime))
}

// UpdatePeriod sets the regime's default reporting period
// @Summary      Update regime period
// @Tags         regimes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Regime ID"
// @Param        payload  body      service.UpdateRegimePeriodRequest  true  "Period"
// @Success      200      {object}  response.Response{data=service.RegimeResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/regimes/{id} [put]
func (h *RegimeHandler) UpdatePeriod(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.UpdateRegimePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	regime, err := h.regimeService.UpdatePeriod(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, regime))
}

// DeleteRegime removes a regime no company uses
// @Summary      Delete tax regime
// @Tags         regimes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Regime ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/regimes/{id} [delete]
func (h *RegimeHandler) DeleteRegime(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.regimeService.DeleteRegime(c.Request.Context(), actorID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Regime deleted"))
}
