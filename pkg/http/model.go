package http

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"tz"`
	Message string                 `json:"message,omitempty" example:"tz is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status   string            `json:"status"`
	Provider string            `json:"provider"`
	Channels []string          `json:"channels"`
	Checks   map[string]string `json:"checks,omitempty"`
}
