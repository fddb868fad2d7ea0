// internal/app/system/validators/validators.go
package validators

// Request bodies are decoded into DTO structs tagged for
// go-playground/validator. Field names in messages use the json tag so
// clients see the names they sent.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	return v
}

// Struct validates s. Failures come back as a VALIDATION *apierr.Error whose
// Fields map each offending field to a message; Message names the first.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierr.Invalid(err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg := message(fe)
		fields[fe.Field()] = msg
		if first == "" {
			first = fe.Field() + " " + msg
		}
	}
	return apierr.Invalid(first, fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "objectid":
		return "must be a valid id"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields, and
// validates the result.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	_, err := DecodeJSONKeys(w, r, dst)
	return err
}

// DecodeJSONKeys is DecodeJSON that also reports which top-level keys were
// present, so PATCH handlers can tell an explicit null from an absent field.
func DecodeJSONKeys(w http.ResponseWriter, r *http.Request, dst any) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, apierr.New(apierr.Validation, "request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, apierr.New(apierr.Validation, "invalid request body: "+err.Error())
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, apierr.New(apierr.Validation, "request body must be a JSON object")
	}
	return keys, Struct(dst)
}
