package businessflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amirphl/hopgate/utils"
	"github.com/go-playground/validator/v10"
)

var partnerCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RegisterValidations adds the tracking-specific tags to v
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("partner_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return len(code) <= utils.MaxPartnerCodeLength && partnerCodePattern.MatchString(code)
	})
}

// NewValidator returns a validator with the tracking tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// parsePartnerCode returns nil when no code was supplied
func parsePartnerCode(v *validator.Validate, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	code := strings.TrimSpace(*raw)
	if code == "" {
		return nil, nil
	}
	if err := v.Var(code, "partner_code"); err != nil {
		return nil, ErrInvalidPartnerCode
	}
	return &code, nil
}

// parseOfferHint returns nil when no hint was supplied
func parseOfferHint(v *validator.Validate, raw *string) (*uint, error) {
	if raw == nil {
		return nil, nil
	}
	hint := strings.TrimSpace(*raw)
	if hint == "" {
		return nil, nil
	}
	if err := v.Var(hint, "number"); err != nil {
		return nil, ErrInvalidOfferHint
	}
	id, err := strconv.ParseUint(hint, 10, strconv.IntSize)
	if err != nil || id == 0 {
		return nil, ErrInvalidOfferHint
	}
	return utils.ToPtr(uint(id)), nil
}

// parseCreativeID returns nil when no creative id was supplied
func parseCreativeID(v *validator.Validate, raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if err := v.Var(raw, "number"); err != nil {
		return nil, ErrInvalidCreativeID
	}
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return nil, ErrInvalidCreativeID
	}
	return utils.ToPtr(uint(id)), nil
}
