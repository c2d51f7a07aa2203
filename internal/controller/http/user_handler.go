package http

import (
	"net/http"

	"bookstack/internal/entity"
	"bookstack/internal/usecase"
	"bookstack/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userUseCase usecase.UserUseCase
	logger      *logger.Logger
}

func NewUserHandler(userUseCase usecase.UserUseCase, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		logger:      logger,
	}
}

// ListUsers godoc
// @Summary      List users
// @Description  Return every registered account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userUseCase.List()
	if err != nil {
		h.logger.Error("Failed to list users: %v", err)
		respondError(c, err)
		return
	}

	response := make([]map[string]interface{}, 0, len(users))
	for _, user := range users {
		response = append(response, formatUserResponse(user))
	}
	c.JSON(http.StatusOK, response)
}

// GetUser godoc
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userUseCase.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatUserResponse(user))
}

type SetPermissionsRequest struct {
	Permissions []entity.Permission `json:"permissions" binding:"required"`
}

// SetPermissions godoc
// @Summary      Replace a user's permissions
// @Description  Overwrite the permission set. Permissions must come from the known set (ADMIN, CREATE, APPROVE, ARCHIVE, DELETE, EDIT).
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Param        request body SetPermissionsRequest true "New permission set"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{id}/permissions [put]
func (h *UserHandler) SetPermissions(c *gin.Context) {
	var req SetPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userUseCase.SetPermissions(c.Param("id"), req.Permissions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatUserResponse(user))
}

// ResetTokens godoc
// @Summary      Revoke a user's tokens
// @Description  Invalidate every access and refresh token issued to the user before now
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{id}/reset-tokens [post]
func (h *UserHandler) ResetTokens(c *gin.Context) {
	if err := h.userUseCase.ResetTokens(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tokens revoked"})
}
