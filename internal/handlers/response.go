package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const codeInternal = "INTERNAL_ERROR"

var statusByCode = map[string]int{
	apperror.CodeValidation:    http.StatusBadRequest,
	apperror.CodeNotFound:      http.StatusNotFound,
	apperror.CodeAlreadyExists: http.StatusConflict,
	apperror.CodeConflict:      http.StatusConflict,
}

// respondError writes the failure envelope. Errors without a caller-facing
// code are logged and reported as 500 without detail.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body := gin.H{"success": false, "code": appErr.Code, "message": appErr.Message}
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
		status, ok := statusByCode[appErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	logger.FromGin(c).Error("request failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"code":    codeInternal,
		"message": "internal server error",
	})
}

// bindError turns a gin binding failure into a field-level validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.Validation(fe.Field(), validationMessage(fe))
	}
	var perr *currency.ParseError
	if errors.As(err, &perr) {
		return apperror.Validation("total", perr.Error())
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.Validationf(typeErr.Field, "must be a %s", typeErr.Type.String())
	}
	return apperror.Validation("", "invalid request body")
}
