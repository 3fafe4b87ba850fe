package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/manabi-dev/manabi/internal/errors"
	"github.com/manabi-dev/manabi/internal/logger"
)

// WriteJSON writes v with the given status. Encoding failures are logged and
// surface as a 500 to the client.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

// WriteMessage writes the standard success body {"message": ...}.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, map[string]string{"message": message})
}

// WriteErrorAndStatusCode maps an error to its JSON body and HTTP status:
// validator errors become {"errors": [...]} with 400, ErrorWithStatusCode
// keeps its status, anything else is a 500 whose details stay server-side.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldErrorMessage(fe))
		}
		WriteJSON(w, http.StatusBadRequest, map[string][]string{"errors": msgs})
		return
	}

	if e, ok := err.(*errors.ErrorWithStatusCode); ok {
		WriteJSON(w, e.StatusCode, map[string]string{"error": e.Message})
		return
	}

	logger.Log.Error("unexpected error", "error", err)
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValidate decodes a JSON body into body and validates its struct tags.
// Validator errors are returned as-is so WriteErrorAndStatusCode can render
// the per-field list.
func DecodeValidate(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		return errors.NewValidation("Body is invalid json")
	}
	if err := validate.Struct(body); err != nil {
		return err
	}
	return nil
}
