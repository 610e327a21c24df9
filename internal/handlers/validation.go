package handler

import (
	"reflect"
	"strings"
	"sync"

	"invoice-bookkeeping-backend/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupOnce sync.Once

// SetupValidator makes gin's validator report json field names and teaches
// it the branch and isodate tags.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("branch", func(fl validator.FieldLevel) bool {
			_, err := models.ParseBranch(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			return models.IsISODate(strings.TrimSpace(fl.Field().String()))
		})
	})
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "min":
		return "must be at least " + e.Param()
	case "branch":
		names := make([]string, len(models.Branches))
		for i, b := range models.Branches {
			names[i] = string(b)
		}
		return "must be one of " + strings.Join(names, ", ")
	case "isodate":
		return "must be a date in YYYY-MM-DD form"
	case "oneof":
		return "must be one of " + e.Param()
	default:
		return "is invalid"
	}
}
