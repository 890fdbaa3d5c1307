package handlers

import (
	"time"

	"github.com/amirphl/hopgate/app/dto"
	businessflow "github.com/amirphl/hopgate/business_flow"
	"github.com/amirphl/hopgate/utils"
	"github.com/gofiber/fiber/v3"
)

// HealthHandler reports service liveness and whether routing rules are loaded
type HealthHandler struct {
	index   *businessflow.RuleIndex
	version string
}

func NewHealthHandler(index *businessflow.RuleIndex, version string) *HealthHandler {
	return &HealthHandler{index: index, version: version}
}

// Health answers 503 until the first rule snapshot is published
func (h *HealthHandler) Health(c fiber.Ctx) error {
	snapshot := h.index.Snapshot()
	resp := dto.HealthResponse{
		Status:         "ok",
		Timestamp:      utils.UTCNow().Unix(),
		Version:        h.version,
		Service:        "hopgate",
		RuleGeneration: snapshot.Generation(),
	}
	if !h.index.Loaded() {
		resp.Status = "starting"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Rule index not loaded",
			Data:    resp,
		})
	}
	resp.RuleIndexLoadedAt = snapshot.LoadedAt().Format(time.RFC3339)
	return SuccessResponse(c, fiber.StatusOK, "Service is healthy", resp)
}
