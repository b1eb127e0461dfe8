package model

// Machine-checkable error codes returned in the API error envelope.
const (
	CodeInvalidReleaseStatus = "invalid_release_status"
	CodeMissingBundle        = "missing_bundle"
	CodeNotFound             = "not_found"
	CodeInvalidBundle        = "invalid_bundle"
	CodeHashMismatch         = "hash_mismatch"
	CodeUnknownTier          = "unknown_tier"
	CodeRollbackUnavailable  = "rollback_unavailable"
	CodeValidation           = "validation_failed"
	CodeInternal             = "internal_error"
)
