package handler

import (
	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

type listUsersQuery struct {
	Role   string `query:"role"`
	Status string `query:"status"`
	Search string `query:"search"`
	Page   int    `query:"page"  validate:"gte=0"`
	Limit  int    `query:"limit" validate:"gte=0"`
}

type listUsersResponse struct {
	Users      []userResponse `json:"users"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

func toListUsersResponse(res *ports.ListUsersResult) listUsersResponse {
	users := make([]userResponse, 0, len(res.Items))
	for _, a := range res.Items {
		users = append(users, toUserResponse(a))
	}
	return listUsersResponse{
		Users:      users,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	}
}

// createUserRequest leaves format checks to the service so this handler and
// the super admin bootstrap share one set of rules.
type createUserRequest struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"     validate:"required"`
	Role      string `json:"role"      validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type roleOption struct {
	Value domain.Role `json:"value"`
	Label string      `json:"label"`
}

type assignableRolesResponse struct {
	Roles []roleOption `json:"roles"`
}

func toAssignableRolesResponse(roles []domain.Role) assignableRolesResponse {
	out := make([]roleOption, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleOption{Value: r, Label: r.Label()})
	}
	return assignableRolesResponse{Roles: out}
}

type createUserResponse struct {
	Message           string       `json:"message"`
	GeneratedPassword string       `json:"generatedPassword"`
	UserID            int64        `json:"userId"`
	User              userResponse `json:"user"`
}
