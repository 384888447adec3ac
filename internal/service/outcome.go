// Package service implements the application's use cases on top of the repositories.
package service

import (
	"errors"
	"strings"

	"ripple/internal/models"
	"ripple/internal/observability"
)

// recordOutcome counts an engagement operation by its result: "ok" or the lower-cased AppError code.
func recordOutcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(models.CodeInternal)
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			outcome = strings.ToLower(appErr.Code)
		}
	}
	observability.EngagementOutcomes.WithLabelValues(operation, outcome).Inc()
}

// asPersistenceFailure keeps AppErrors as they are and wraps anything else as INTERNAL_ERROR.
func asPersistenceFailure(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
