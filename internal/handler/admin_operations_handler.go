package handler

import (
	"net/http"

	"reinf/internal/middleware"
	"reinf/internal/service"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	actionCreateUser    = "create-user"
	actionResetPassword = "reset-password"
	actionDeleteUser    = "delete-user"
)

// AdminOperationRequest is the body of POST /api/admin-operations. Which
// fields are read depends on Action.
type AdminOperationRequest struct {
	Action   string `json:"action" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	RoleID   string `json:"role_id"`
	UserID   string `json:"user_id"`
}

type AdminOperationsHandler struct {
	userService service.UserService
}

func NewAdminOperationsHandler(userService service.UserService) *AdminOperationsHandler {
	return &AdminOperationsHandler{userService: userService}
}

func (h *AdminOperationsHandler) RegisterRoutes(router *gin.RouterGroup, authMW *middleware.Auth) {
	router.POST("/api/admin-operations", authMW.RequireAuth(), authMW.RequireAdmin(), h.Dispatch)
}

// Dispatch runs one privileged user-provisioning action
// @Summary      Administrative operations
// @Description  action is one of create-user, reset-password, delete-user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      AdminOperationRequest  true  "Operation"
// @Success      200      {object}  response.Response
// @Success      201      {object}  response.Response{data=service.CreateUserResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin-operations [post]
func (h *AdminOperationsHandler) Dispatch(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AdminOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case actionCreateUser:
		res, err := h.userService.CreateUser(ctx, callerID, service.CreateUserRequest{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
			RoleID:   req.RoleID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))

	case actionResetPassword:
		err := h.userService.ResetPassword(ctx, callerID, service.ResetPasswordRequest{UserID: req.UserID, Password: req.Password})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"success": true}))

	case actionDeleteUser:
		err := h.userService.DeleteUser(ctx, callerID, service.DeleteUserRequest{UserID: req.UserID})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"success": true}))

	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Unknown action: "+req.Action))
	}
}
