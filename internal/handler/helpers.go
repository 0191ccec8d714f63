package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/apierror"
	"github.com/rishad7060/tillagent/internal/registry"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeRegistryError maps a typed gate rejection to its structured envelope;
// anything else degrades to a generic 400.
func writeRegistryError(c *gin.Context, err error) {
	var ce *registry.CloseError
	if errors.As(err, &ce) {
		status := http.StatusConflict
		if ce.Code == registry.CodeInvalidActualCash || ce.Code == registry.CodeNotesRequired {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, &apierror.APIError{
			Detail:         ce.Detail,
			Code:           ce.Code,
			PendingRefunds: ce.Refunds,
		})
		return
	}
	c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
}
