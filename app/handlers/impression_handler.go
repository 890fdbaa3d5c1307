package handlers

import (
	"github.com/amirphl/hopgate/app/dto"
	businessflow "github.com/amirphl/hopgate/business_flow"
	"github.com/amirphl/hopgate/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ImpressionHandlerInterface defines contract for the impression pixel
type ImpressionHandlerInterface interface {
	Record(c fiber.Ctx) error
}

type ImpressionHandler struct {
	flow      businessflow.ImpressionFlow
	signals   ClientSignals
	validator *validator.Validate
	log       logrus.FieldLogger
}

func NewImpressionHandler(flow businessflow.ImpressionFlow, signals ClientSignals, log logrus.FieldLogger) ImpressionHandlerInterface {
	return &ImpressionHandler{
		flow:      flow,
		signals:   signals,
		validator: businessflow.NewValidator(),
		log:       log,
	}
}

// Record counts one impression for an eligible partner
func (h *ImpressionHandler) Record(c fiber.Ctx) error {
	req := dto.ImpressionRequest{
		Partner:    c.FormValue("partner"),
		CreativeID: c.FormValue("creative_id"),
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, getValidationErrorMessage(fe))
			}
		}
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ip := h.signals.IP(c)
	ctx, cancel := createRequestContext(c, "/impression", utils.ImpressionRequestTimeout, ip)
	defer cancel()

	err := h.flow.Record(ctx, businessflow.ImpressionRequest{
		PartnerCode: req.Partner,
		CreativeID:  req.CreativeID,
		IP:          ip,
		UserAgent:   h.signals.UserAgent(c),
	})
	if err != nil {
		if businessflow.IsClientInputError(err) {
			return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
		}
		if businessflow.IsPartnerNotEligible(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "Partner not found", "PARTNER_NOT_FOUND", nil)
		}

		h.log.WithError(err).WithField("partner_code", req.Partner).Error("impression failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record impression", businessflow.ErrorCode(err, "IMPRESSION_FAILED"), nil)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.APIResponse{Success: true})
}
