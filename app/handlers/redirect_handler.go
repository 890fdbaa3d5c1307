package handlers

import (
	businessflow "github.com/amirphl/hopgate/business_flow"
	"github.com/amirphl/hopgate/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// RedirectHandlerInterface defines contract for public click redirects
type RedirectHandlerInterface interface {
	Redirect(c fiber.Ctx) error
}

type RedirectHandler struct {
	flow    businessflow.RedirectFlow
	signals ClientSignals
	log     logrus.FieldLogger
}

func NewRedirectHandler(flow businessflow.RedirectFlow, signals ClientSignals, log logrus.FieldLogger) RedirectHandlerInterface {
	return &RedirectHandler{flow: flow, signals: signals, log: log}
}

// Redirect resolves a click on a tracking domain and redirects the visitor.
// Partner code and offer hint come from the path or the query; the query wins.
func (h *RedirectHandler) Redirect(c fiber.Ctx) error {
	ip := h.signals.IP(c)
	req := businessflow.RedirectRequest{
		Host:        c.Host(),
		PartnerCode: firstNonEmpty(c.Query("partner"), c.Params("partner")),
		OfferHint:   firstNonEmpty(c.Query("offer"), c.Params("offer")),
		IP:          ip,
		UserAgent:   h.signals.UserAgent(c),
		Referer:     h.signals.Referer(c),
	}

	ctx, cancel := createRequestContext(c, c.Path(), utils.RedirectRequestTimeout, ip)
	defer cancel()

	result, err := h.flow.Dispatch(ctx, req)
	if err != nil {
		switch {
		case businessflow.IsTrackingDomainRequired(err):
			return ErrorResponse(c, fiber.StatusBadRequest, "Tracking domain is required", "TRACKING_DOMAIN_REQUIRED", nil)
		case businessflow.IsInvalidPartnerCode(err):
			return ErrorResponse(c, fiber.StatusBadRequest, "Invalid partner code", "INVALID_PARTNER_CODE", nil)
		case businessflow.IsInvalidOfferHint(err):
			return ErrorResponse(c, fiber.StatusBadRequest, "Invalid offer", "INVALID_OFFER_HINT", nil)
		case businessflow.IsNotFoundError(err):
			return ErrorResponse(c, fiber.StatusNotFound, "Tracking domain not recognized", "TRACKING_DOMAIN_NOT_FOUND", nil)
		}

		h.log.WithError(err).WithField("host", req.Host).Error("redirect dispatch failed")
		return ErrorResponse(c, fiber.StatusServiceUnavailable, "Destination unavailable", businessflow.ErrorCode(err, "REDIRECT_FAILED"), nil)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Redirect().Status(fiber.StatusFound).To(result.Location)
}

func firstNonEmpty(values ...string) *string {
	for _, v := range values {
		if p := utils.NonEmpty(v); p != nil {
			return p
		}
	}
	return nil
}
