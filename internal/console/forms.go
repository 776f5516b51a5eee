package console

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"kvsdoorbell/internal/types"
)

// doorbellForm is the DoorbellPress form. Region is checked by
// external.ParseRegion so that an empty or unknown value gets the same
// invalid_region message.
type doorbellForm struct {
	Region     string `json:"region"`
	Token      string `json:"token" validate:"required"`
	EndpointID string `json:"endpoint_id" validate:"required"`
}

// tokenForm is the LWA token renewal form.
type tokenForm struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// newFormValidator returns a validator that reports fields by their JSON
// (and form) name.
func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind fills dst from a JSON body or from form values keyed by the JSON tag
// names. It does not validate.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst any) error {
	if isJSONBody(r) {
		if err := decodeJSON(w, r, dst); err != nil {
			return err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			return types.NewAppError(types.ErrCodeValidationMalformed, "malformed form body", err)
		}
		fillFromForm(r, dst)
	}
	return nil
}

// fillFromForm copies trimmed form values into the string fields of the
// struct pointed to by dst.
func fillFromForm(r *http.Request, dst any) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" || v.Field(i).Kind() != reflect.String {
			continue
		}
		v.Field(i).SetString(strings.TrimSpace(r.PostForm.Get(name)))
	}
}

// validateForm runs struct validation and reports every missing field in a
// single validation_missing_required_field error.
func (s *Server) validateForm(dst any) error {
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationMalformed, "invalid form", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissing,
		"missing required fields: "+strings.Join(fields, ", "), err,
		map[string]any{"fields": fields})
}
