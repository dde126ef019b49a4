package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	LogLevel string `json:"log_level"`
}
