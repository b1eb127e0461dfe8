package request

// CreateChannel creates a named distribution channel for an app.
type CreateChannel struct {
	Name string `json:"name" validate:"required,slug"`
}
