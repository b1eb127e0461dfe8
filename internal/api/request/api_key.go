package request

// CreateAPIKey creates an operator credential on a tier.
type CreateAPIKey struct {
	Name  string `json:"name" validate:"required"`
	OrgID string `json:"org_id" validate:"required"`
	Tier  string `json:"tier" validate:"required,oneof=enterprise team pro free"`
}
