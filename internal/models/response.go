package models

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Upstream carries the status uploads.im reported, when it reported one.
	Upstream *UpstreamStatus `json:"upstream,omitempty"`
}

type UpstreamStatus struct {
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
}
