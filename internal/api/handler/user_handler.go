package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/api/metrics"
	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// List returns one page of accounts, newest first.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        role    query     string  false  "Filter by role"
// @Param        status  query     string  false  "Filter by status (ACTIVE, INACTIVE)"
// @Param        search  query     string  false  "Substring of user ID, email or name"
// @Param        page    query     int     false  "1-based page number"
// @Param        limit   query     int     false  "Page size (default 20, max 100)"
// @Success      200     {object}  listUsersResponse
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	var q listUsersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return fmt.Errorf("%w: page and limit must be numbers", domain.ErrValidation)
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	res, err := h.service.ListUsers(c.Request().Context(), session, ports.ListUsersInput{
		Role:   q.Role,
		Status: q.Status,
		Search: q.Search,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toListUsersResponse(res))
}

// AssignableRoles lists the roles the caller may give to a new account.
//
// @Summary      Roles the caller may assign
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  assignableRolesResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/roles [get]
func (h *UserHandler) AssignableRoles(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAssignableRolesResponse(domain.CreatableRoles(session.Role)))
}

// Create provisions a new account with a generated temporary password.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New account details"
// @Success      201   {object}  createUserResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /users/create [post]
func (h *UserHandler) Create(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.service.CreateUser(c.Request().Context(), session, ports.CreateUserInput{
		UserID:    req.UserID,
		Email:     req.Email,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	metrics.AccountsCreatedTotal.WithLabelValues(string(res.Account.Role)).Inc()

	return c.JSON(http.StatusCreated, createUserResponse{
		Message:           "User created successfully",
		GeneratedPassword: res.GeneratedPassword,
		UserID:            res.Account.ID,
		User:              toUserResponse(res.Account),
	})
}

// Deactivate blocks an account from logging in.
//
// @Summary      Deactivate a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Account id"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id}/deactivate [patch]
func (h *UserHandler) Deactivate(c echo.Context) error {
	return h.changeStatus(c, domain.StatusInactive, h.service.Deactivate, "User deactivated")
}

// Activate restores a deactivated account.
//
// @Summary      Activate a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Account id"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id}/activate [patch]
func (h *UserHandler) Activate(c echo.Context) error {
	return h.changeStatus(c, domain.StatusActive, h.service.Activate, "User activated")
}

type statusChangeFunc func(ctx context.Context, actor *domain.Session, targetID int64) error

func (h *UserHandler) changeStatus(c echo.Context, status domain.Status, apply statusChangeFunc, message string) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	targetID, err := parseAccountID(c.Param("id"))
	if err != nil {
		return err
	}

	if err := apply(c.Request().Context(), session, targetID); err != nil {
		return err
	}
	metrics.AccountStatusChangesTotal.WithLabelValues(string(status)).Inc()

	return c.JSON(http.StatusOK, messageResponse{Message: message})
}

func parseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %q", domain.ErrValidation, raw)
	}
	return id, nil
}
