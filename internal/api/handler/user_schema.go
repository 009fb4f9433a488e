package handler

import (
	"strings"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// --- Request types ---

type createUserRequest struct {
	Name    string `json:"name"    form:"name"    validate:"required,min=2,max=100,personname"`
	ZipCode string `json:"zipCode" form:"zipCode" validate:"required,zipcode"`
}

func (r *createUserRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
}

type updateUserRequest struct {
	Name    *string `json:"name"    form:"name"    validate:"omitnil,min=2,max=100,personname"`
	ZipCode *string `json:"zipCode" form:"zipCode" validate:"omitnil,zipcode"`
}

func (r *updateUserRequest) trim() {
	if r.Name != nil {
		v := strings.TrimSpace(*r.Name)
		r.Name = &v
	}
	if r.ZipCode != nil {
		v := strings.TrimSpace(*r.ZipCode)
		r.ZipCode = &v
	}
}

// --- Response envelopes ---

type userListResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Data    []*domain.User `json:"data"`
}

type userZipResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	ZipCode string         `json:"zipCode"`
	Data    []*domain.User `json:"data"`
}

type userResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    *domain.User `json:"data"`
}

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Details []domain.FieldViolation `json:"details,omitempty"`
}
