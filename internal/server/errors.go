package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/affcd/gateway/internal/addons"
	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	"github.com/affcd/gateway/internal/configsync"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/internal/signature"
	usagedomain "github.com/affcd/gateway/internal/usageevent/domain"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotImplemented = errors.New("not_implemented")
	ErrInternal       = errors.New("internal_error")
)

// rateLimitError carries the window reset so the response can tell the
// caller when to come back.
type rateLimitError struct {
	ResetAt time.Time
}

func (e *rateLimitError) Error() string { return "rate_limited" }

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorHandlingMiddleware turns errors attached to the gin context into the
// JSON error contract. Handlers call AbortWithError and return.
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

		status, body := mapError(lastErr.Err)

		var rle *rateLimitError
		if errors.As(lastErr.Err, &rle) {
			retryAfter := int(time.Until(rle.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(rle.ResetAt.Unix(), 10))
		}

		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorBody) {
	var rle *rateLimitError
	if errors.As(err, &rle) {
		return http.StatusTooManyRequests, errorBody{
			Error:   "rate_limited",
			Message: "rate limit exceeded, retry after " + rle.ResetAt.UTC().Format(time.RFC3339),
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorBody{
			Error:   err.Error(),
			Message: validationMessage(err.Error()),
		}
	case isAuthError(err):
		// Deliberately generic: never reveal whether a key exists or a
		// signature was close.
		return http.StatusUnauthorized, errorBody{
			Error:   "unauthorized",
			Message: "authentication failed",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Message: "domain is not authorized for this operation",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorBody{
			Error:   "not_found",
			Message: "resource not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorBody{
			Error:   err.Error(),
			Message: "resource already exists",
		}
	case errors.Is(err, credentialdomain.ErrDomainSuspended):
		return http.StatusConflict, errorBody{
			Error:   "domain_suspended",
			Message: "domain is suspended; reactivate it before verifying",
		}
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented, errorBody{
			Error:   "not_implemented",
			Message: "feature unavailable",
		}
	default:
		return http.StatusInternalServerError, errorBody{
			Error:   "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, credentialdomain.ErrInvalidDomain),
		errors.Is(err, credentialdomain.ErrInvalidStatus),
		errors.Is(err, credentialdomain.ErrInvalidDomainID),
		errors.Is(err, vanitydomain.ErrInvalidCode),
		errors.Is(err, vanitydomain.ErrInvalidTargetURL),
		errors.Is(err, vanitydomain.ErrInvalidStatus),
		errors.Is(err, vanitydomain.ErrInvalidCodeID),
		errors.Is(err, vanitydomain.ErrInvalidDomain),
		errors.Is(err, usagedomain.ErrInvalidEventType),
		errors.Is(err, usagedomain.ErrMissingCode),
		errors.Is(err, usagedomain.ErrInvalidAmount),
		errors.Is(err, usagedomain.ErrMissingCurrency),
		errors.Is(err, usagedomain.ErrInvalidDomain),
		errors.Is(err, commissiondomain.ErrInvalidAmount),
		errors.Is(err, commissiondomain.ErrMissingCode),
		errors.Is(err, commissiondomain.ErrBelowMinimum),
		errors.Is(err, commissiondomain.ErrInvalidMethod),
		errors.Is(err, commissiondomain.ErrInvalidScope),
		errors.Is(err, commissiondomain.ErrInvalidTiers),
		errors.Is(err, commissiondomain.ErrInvalidRuleID),
		errors.Is(err, securitydomain.ErrInvalidEventType),
		errors.Is(err, securitydomain.ErrInvalidSeverity),
		errors.Is(err, securitydomain.ErrInvalidPageToken),
		errors.Is(err, securitydomain.ErrInvalidTimeRange),
		errors.Is(err, configsync.ErrInvalidOverlay),
		errors.Is(err, addons.ErrInvalidName):
		return true
	default:
		return false
	}
}

func isAuthError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, signature.ErrMissingSignature),
		errors.Is(err, signature.ErrMissingTimestamp),
		errors.Is(err, signature.ErrInvalidSignature),
		errors.Is(err, signature.ErrInvalidTimestamp):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, vanitydomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrNoRule),
		errors.Is(err, commissiondomain.ErrNotFound),
		errors.Is(err, addons.ErrNotRegistered),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	return errors.Is(err, credentialdomain.ErrDomainExists) ||
		errors.Is(err, vanitydomain.ErrCodeExists)
}

// validationMessage gives the field-level detail the error contract promises
// for 400s.
func validationMessage(code string) string {
	if field, ok := strings.CutPrefix(code, "invalid_"); ok {
		return "invalid value for " + field
	}
	if field, ok := strings.CutPrefix(code, "missing_"); ok {
		return field + " is required"
	}
	switch code {
	case "below_minimum_sale":
		return "sale amount is below the rule minimum"
	default:
		return "validation failed"
	}
}
