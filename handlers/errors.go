// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-survey/compiler"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/rules"
	"github.com/danielhkuo/quickly-survey/schema"
	"github.com/danielhkuo/quickly-survey/submission"
)

// writeError maps domain errors onto HTTP responses. Anything unrecognised
// is logged and answered with 500 and the fallback message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var (
		structureErr *schema.StructureError
		existsErr    *compiler.TableExistsError
		compileErr   *compiler.CompileError
		fieldErrs    rules.FieldErrors
		submitErr    *submission.Error
	)

	switch {
	case errors.As(err, &structureErr):
		middleware.ErrorResponse(w, http.StatusBadRequest, structureErr.Error())
	case errors.As(err, &existsErr):
		middleware.ErrorResponse(w, http.StatusConflict, existsErr.Error())
	case errors.As(err, &fieldErrs):
		middleware.ErrorDetails(w, http.StatusUnprocessableEntity, "Validation failed", fieldErrs.ByField())
	case errors.Is(err, registry.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Subunit not found")
	case errors.Is(err, submission.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Submission not found")
	case errors.Is(err, compiler.ErrMappingNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Mapping not found")
	case errors.Is(err, submission.ErrInactive):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, submission.ErrInvalidStatus):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &compileErr):
		slog.Error("schema compile failed", "section", compileErr.Section, "error", compileErr.Err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, compileErr.Error())
	case errors.As(err, &submitErr):
		slog.Error("submission failed", "survey_id", submitErr.SurveyID, "error", submitErr.Err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to store submission")
	default:
		slog.Error(fallback, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}
