package dto

// ImpressionRequest is the form posted by the impression pixel
type ImpressionRequest struct {
	Partner    string `form:"partner" json:"partner" validate:"required,partner_code"`
	CreativeID string `form:"creative_id" json:"creative_id,omitempty" validate:"omitempty,number"`
}

// HealthResponse reports liveness and rule index state
type HealthResponse struct {
	Status            string `json:"status"`
	Timestamp         int64  `json:"timestamp"`
	Version           string `json:"version"`
	Service           string `json:"service"`
	RuleGeneration    uint64 `json:"rule_generation"`
	RuleIndexLoadedAt string `json:"rule_index_loaded_at,omitempty"`
}
