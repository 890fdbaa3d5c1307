package businessflow

import (
	"context"

	"github.com/amirphl/hopgate/utils"
	"github.com/go-playground/validator/v10"
)

// ImpressionRequest is a pixel fire
type ImpressionRequest struct {
	PartnerCode string
	CreativeID  string
	IP          *string
	UserAgent   *string
}

// ImpressionFlow counts impressions for eligible partners.
// Public flow, no authentication required.
type ImpressionFlow interface {
	Record(ctx context.Context, req ImpressionRequest) error
}

type ImpressionFlowImpl struct {
	index     *RuleIndex
	recorder  AttributionRecorder
	validator *validator.Validate
}

func NewImpressionFlow(index *RuleIndex, recorder AttributionRecorder) ImpressionFlow {
	return &ImpressionFlowImpl{
		index:     index,
		recorder:  recorder,
		validator: NewValidator(),
	}
}

func (f *ImpressionFlowImpl) Record(ctx context.Context, req ImpressionRequest) error {
	code, err := parsePartnerCode(f.validator, &req.PartnerCode)
	if err != nil {
		return err
	}
	if code == nil {
		return ErrPartnerCodeRequired
	}
	creativeID, err := parseCreativeID(f.validator, req.CreativeID)
	if err != nil {
		return err
	}

	partner := f.index.ResolvePartner(*code)
	if !partner.IsEligible() {
		return ErrPartnerNotEligible
	}

	requestID, _ := ctx.Value(utils.RequestIDKey).(string)
	return f.recorder.RecordImpression(ctx, partner.ID, creativeID, ClickContext{
		IP:        req.IP,
		UserAgent: req.UserAgent,
		RequestID: requestID,
	})
}
