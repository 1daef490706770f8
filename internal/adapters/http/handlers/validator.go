// Package handlers contains the HTTP handlers of the REST API.
//
// A handler is an adapter: it binds the HTTP request, converts it into a
// command or query DTO, invokes the use case, and renders the result. No
// business decisions are made here; coded errors from the application layer
// are translated through common.HandleDomainError.
package handlers

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Haleralex/walletledger/internal/adapters/http/common"
)

// ============================================
// Custom Validator Setup
// ============================================

var setupOnce sync.Once

// SetupValidator installs the custom validators on gin's binding engine.
// Safe to call from multiple handlers; only the first call does work.
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			// Report field names by their json tag so clients can match
			// errors to the payload they sent.
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})

			_ = v.RegisterValidation("money_amount", validateMoneyAmount)
		}
	})
}

// ============================================
// Custom Validators
// ============================================

// validateMoneyAmount checks the decimal-string shape of a monetary field.
// The ledger stores four fractional digits, so the literal may carry at most
// four.
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,4})?$`)

func validateMoneyAmount(fl validator.FieldLevel) bool {
	amount := fl.Field().String()
	return moneyPattern.MatchString(amount)
}

// ============================================
// Validation Error Handling
// ============================================

// HandleValidationErrors converts binding failures into the error envelope.
// Structured validator errors become per-field entries; anything else (JSON
// syntax errors, type mismatches) becomes a generic INVALID_REQUEST.
func HandleValidationErrors(c *gin.Context, err error) {
	var fieldErrors []common.FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			fieldErrors = append(fieldErrors, common.FieldError{
				Field:   fieldErr.Field(),
				Message: getValidationMessage(fieldErr),
				Code:    fieldErr.Tag(),
			})
		}
	}

	if len(fieldErrors) == 0 {
		common.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	common.ValidationErrorResponse(c, fieldErrors)
}

// getValidationMessage renders a human-readable message per validation tag.
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too short (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too long (maximum: " + fe.Param() + ")"
	case "money_amount":
		return "Invalid amount format (use a decimal like '100.5000')"
	default:
		return "Invalid value"
	}
}

// ============================================
// Request Parsing Helpers
// ============================================

// BindJSON binds the JSON body into req. Returns false when binding failed,
// in which case the error response has already been written.
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindURI binds URI parameters into req.
func BindURI[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindUri(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}
