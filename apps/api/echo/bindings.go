package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classmirror/core"
)

// conflict batch actions
const (
	actionResolve = "resolve"
	actionIgnore  = "ignore"
)

type (
	// ConflictActionResponse is returned by the resolve/ignore endpoints.
	// ResolvedValue is set on resolve (the value now in the cache), KeptValue
	// on ignore (the cached value that was preserved).
	ConflictActionResponse struct {
		Success  bool            `json:"success"`
		Conflict ConflictOutcome `json:"conflict"`
	}

	ConflictOutcome struct {
		ID            string `json:"id"`
		ItemType      string `json:"item_type"`
		Field         string `json:"field"`
		ResolvedValue string `json:"resolved_value,omitempty"`
		KeptValue     string `json:"kept_value,omitempty"`
	}

	BatchConflictRequest struct {
		ConflictIDs []string `json:"conflict_ids" validate:"required,min=1,dive,required"`
		Action      string   `json:"action" validate:"required,oneof=resolve ignore"`
	}

	SetNameRequest struct {
		Name string `json:"name" validate:"required"`
	}

	SetTokenRequest struct {
		BaseURL string `json:"base_url" validate:"omitempty,url"`
		Token   string `json:"token" validate:"required"`
	}
)

func (r *BatchConflictRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r *SetNameRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	return validate.Struct(r)
}

func (r *SetTokenRequest) Validate(validate *validator.Validate) error {
	r.BaseURL = core.CleanString(r.BaseURL)
	r.Token = core.CleanString(r.Token)
	return validate.Struct(r)
}
