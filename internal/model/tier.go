package model

// Account tiers, ordered from highest to lowest service level. The tier
// governs upload queue priority and which verification strategy the device
// agent runs after applying an update.
const (
	TierEnterprise = "enterprise"
	TierTeam       = "team"
	TierPro        = "pro"
	TierFree       = "free"
)

// ValidTier reports whether s names a known account tier.
func ValidTier(s string) bool {
	switch s {
	case TierEnterprise, TierTeam, TierPro, TierFree:
		return true
	}
	return false
}
