package request

// Broadcast is a service-to-service request to fan an event out to
// realtime subscribers.
type Broadcast struct {
	Event    string         `json:"event" validate:"required"`
	Resource string         `json:"resource" validate:"required"`
	ID       string         `json:"id" validate:"required"`
	Data     map[string]any `json:"data,omitempty"`
}
