package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// UserHandler handles HTTP requests for the user directory.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// List handles GET /api/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {object}  userListResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	users = nonNil(users)
	return c.JSON(http.StatusOK, userListResponse{Success: true, Count: len(users), Data: users})
}

// Get handles GET /api/users/:id.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, Data: user})
}

// ListByZipCode handles GET /api/users/zip/:zipCode.
//
// @Summary      List users sharing a zip code
// @Tags         users
// @Produce      json
// @Param        zipCode  path      string  true  "5-digit zip code"
// @Success      200      {object}  userZipResponse
// @Failure      400      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /api/users/zip/{zipCode} [get]
func (h *UserHandler) ListByZipCode(c echo.Context) error {
	zipCode := strings.TrimSpace(c.Param("zipCode"))
	users, err := h.service.ListUsersByZipCode(c.Request().Context(), zipCode)
	if err != nil {
		return err
	}
	users = nonNil(users)
	return c.JSON(http.StatusOK, userZipResponse{Success: true, Count: len(users), ZipCode: zipCode, Data: users})
}

// Create handles POST /api/users.
//
// @Summary      Create a user
// @Description  Validates the payload, resolves the zip code through the geocoding provider, and stores the enriched record.
// @Tags         users
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.BadRequest("invalid request body")
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.service.CreateUser(c.Request().Context(), ports.CreateUserInput{
		Name:    req.Name,
		ZipCode: req.ZipCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{Success: true, Message: "User created successfully", Data: user})
}

// Update handles PUT /api/users/:id.
//
// @Summary      Update a user
// @Description  Partial update. A changed zip code re-resolves every location field.
// @Tags         users
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.BadRequest("invalid request body")
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.service.UpdateUser(c.Request().Context(), c.Param("id"), ports.UpdateUserInput{
		Name:    req.Name,
		ZipCode: req.ZipCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, Message: "User updated successfully", Data: user})
}

// Delete handles DELETE /api/users/:id and returns the removed record.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	user, err := h.service.DeleteUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, Message: "User deleted successfully", Data: user})
}

// RefreshLocation handles POST /api/users/:id/refresh-location.
//
// @Summary      Re-resolve a user's location
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /api/users/{id}/refresh-location [post]
func (h *UserHandler) RefreshLocation(c echo.Context) error {
	user, err := h.service.RefreshLocation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, Message: "Location data refreshed successfully", Data: user})
}

func nonNil(users []*domain.User) []*domain.User {
	if users == nil {
		return []*domain.User{}
	}
	return users
}
