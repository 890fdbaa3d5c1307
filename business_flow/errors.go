// Package businessflow contains the redirect and attribution use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Client input errors
	ErrTrackingDomainRequired = errors.New("tracking domain is required")
	ErrInvalidPartnerCode     = errors.New("invalid partner code")
	ErrInvalidOfferHint       = errors.New("invalid offer hint")
	ErrPartnerCodeRequired    = errors.New("partner code is required")
	ErrInvalidCreativeID      = errors.New("invalid creative id")

	// Not found errors
	ErrTrackingDomainNotFound = errors.New("tracking domain not found")
	ErrPartnerNotEligible     = errors.New("partner not found or not eligible")

	// Configuration errors
	ErrFallbackNotConfigured = errors.New("fallback destination is not configured")
)

// BusinessError wraps an underlying error with a stable code for clients and logs
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsTrackingDomainRequired(err error) bool {
	return errors.Is(err, ErrTrackingDomainRequired)
}

func IsTrackingDomainNotFound(err error) bool {
	return errors.Is(err, ErrTrackingDomainNotFound)
}

func IsInvalidPartnerCode(err error) bool {
	return errors.Is(err, ErrInvalidPartnerCode)
}

func IsInvalidOfferHint(err error) bool {
	return errors.Is(err, ErrInvalidOfferHint)
}

func IsPartnerCodeRequired(err error) bool {
	return errors.Is(err, ErrPartnerCodeRequired)
}

func IsPartnerNotEligible(err error) bool {
	return errors.Is(err, ErrPartnerNotEligible)
}

func IsInvalidCreativeID(err error) bool {
	return errors.Is(err, ErrInvalidCreativeID)
}

func IsFallbackNotConfigured(err error) bool {
	return errors.Is(err, ErrFallbackNotConfigured)
}

// IsClientInputError reports malformed or missing request identifiers (400)
func IsClientInputError(err error) bool {
	return IsTrackingDomainRequired(err) ||
		IsInvalidPartnerCode(err) ||
		IsInvalidOfferHint(err) ||
		IsPartnerCodeRequired(err) ||
		IsInvalidCreativeID(err)
}

// IsNotFoundError reports unknown tracking domains and ineligible partners (404)
func IsNotFoundError(err error) bool {
	return IsTrackingDomainNotFound(err) || IsPartnerNotEligible(err)
}

// ErrorCode returns the business code carried by err, or fallback
func ErrorCode(err error, fallback string) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return fallback
}
