package http

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"text"`
	Message string                 `json:"message,omitempty" example:"text is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps list results with their total.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
