// Package validation provides input validation helpers and middleware for the API.
package validation

import (
	"math"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxIdentityLength caps sender/receiver identity strings.
const MaxIdentityLength = 255

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PaymentMethods are the accepted mock deposit methods.
var PaymentMethods = map[string]bool{
	"upi":        true,
	"card":       true,
	"netbanking": true,
}

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEmail checks basic email shape.
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// IsValidPaymentMethod checks the mock deposit method against the allowed set.
func IsValidPaymentMethod(m string) bool {
	return PaymentMethods[strings.ToLower(strings.TrimSpace(m))]
}

// IsValidAmount checks that an amount is a positive, finite number.
func IsValidAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

// SanitizeIdentity trims surrounding whitespace, strips NUL bytes, and caps
// length. Case is preserved; identities compare case-insensitively at the
// store layer.
func SanitizeIdentity(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxIdentityLength {
		s = s[:MaxIdentityLength]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs the given validators and collects their errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// PositiveAmount checks that a numeric field is a positive, finite amount.
func PositiveAmount(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if !IsValidAmount(value) {
			return &ValidationError{Field: field, Message: "must be a positive number"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
