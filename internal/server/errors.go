package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	dunningdomain "github.com/smallbiznis/utilitybilling/internal/dunning/domain"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	pricingdomain "github.com/smallbiznis/utilitybilling/internal/pricing/domain"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindError converts a gin binding failure into field-level validation errors.
func bindError(err error) error {
	var sliceErrs binding.SliceValidationError
	if errors.As(err, &sliceErrs) {
		out := &ValidationErrors{}
		for _, e := range sliceErrs {
			if v := asValidationErrors(bindError(e)); v != nil {
				out.Errors = append(out.Errors, v.Errors...)
			}
		}
		return out
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}

	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: "invalid value",
		})
	}
	return out
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    err.Error(),
					Message: "invalid value",
				},
			},
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, invoicedomain.ErrNoCandidates):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "nothing_to_process",
			Message: "nothing to process",
		}
	case errors.Is(err, invoicedomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "invoice was modified concurrently",
		}
	case errors.Is(err, invoicedomain.ErrAlreadyInvoiced):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "tracking already invoiced",
		}
	case errors.Is(err, dunningdomain.ErrDunningLimitReached):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "dunning limit reached",
		}
	case errors.Is(err, pricingdomain.ErrNoMatchingTier):
		return http.StatusInternalServerError, errorPayload{
			Type:    "pricing_error",
			Message: "no pricing tier matches the consumption",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog labels request errors for the access log.
func classifyErrorForLog(err error) string {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, trackingdomain.ErrInvalidType),
		errors.Is(err, trackingdomain.ErrInvalidContract),
		errors.Is(err, trackingdomain.ErrInvalidValue),
		errors.Is(err, trackingdomain.ErrEmptyBatch),
		errors.Is(err, invoicedomain.ErrInvalidType),
		errors.Is(err, invoicedomain.ErrNotPostpaid),
		errors.Is(err, pricingdomain.ErrInvalidQuantity):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, trackingdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
