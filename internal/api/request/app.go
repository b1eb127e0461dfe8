package request

// CreateApp registers a new app.
type CreateApp struct {
	Name     string `json:"name" validate:"required,slug"`
	Platform string `json:"platform" validate:"required,oneof=ios android"`
}
