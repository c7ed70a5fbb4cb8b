package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"userdirectory/internal/errors"
	"userdirectory/internal/model"
	"userdirectory/internal/service"
)

const defaultPageSize = 20

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ListUsersQuery holds pagination parameters.
type ListUsersQuery struct {
	Offset int `query:"offset" validate:"min=0"`
	Limit  int `query:"limit" validate:"min=0,max=100"`
}

// ListUsersResponse is a page of users.
type ListUsersResponse struct {
	Users  []model.User `json:"users"`
	Total  int64        `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

// CreateUser godoc
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body service.CreateUserInput true "User payload"
// @Success 201 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	var in service.CreateUserInput
	if err := c.Bind(&in); err != nil {
		return invalidBody()
	}
	created, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// GetUserByUsername godoc
// @Summary Get user by username
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} model.User
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/by-username/{username} [get]
func (h *UserHandler) GetUserByUsername(c echo.Context) error {
	user, err := h.svc.GetUserByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// FindUsersByEmail godoc
// @Summary List users sharing an email address
// @Tags users
// @Produce json
// @Param email path string true "Email"
// @Success 200 {array} model.User
// @Router /users/by-email/{email} [get]
func (h *UserHandler) FindUsersByEmail(c echo.Context) error {
	users, err := h.svc.FindUsersByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param offset query int false "Offset"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} ListUsersResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	var q ListUsersQuery
	if err := c.Bind(&q); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_QUERY",
		})
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	users, total, err := h.svc.ListUsers(c.Request().Context(), q.Offset, q.Limit)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, ListUsersResponse{
		Users:  users,
		Total:  total,
		Offset: q.Offset,
		Limit:  q.Limit,
	})
}

// UpdateUser godoc
// @Summary Update own user record
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param user body service.UpdateUserInput true "Fields to change"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := h.authorizeSelf(c)
	if err != nil {
		return err
	}
	var in service.UpdateUserInput
	if err := c.Bind(&in); err != nil {
		return invalidBody()
	}
	user, err := h.svc.UpdateUser(c.Request().Context(), id, in)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser godoc
// @Summary Delete own user record
// @Tags users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := h.authorizeSelf(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	id, err := claims.UserID()
	if err != nil {
		return unauthorized()
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// authorizeSelf parses the :id param and checks it names the authenticated user.
func (h *UserHandler) authorizeSelf(c echo.Context) (uuid.UUID, error) {
	id, err := parseUserID(c)
	if err != nil {
		return uuid.Nil, err
	}
	claims, err := currentClaims(c)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.Subject != id.String() {
		return uuid.Nil, respondError(errors.ErrForbidden)
	}
	return id, nil
}

func parseUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid user ID",
			Code:  "INVALID_UUID",
		})
	}
	return id, nil
}
