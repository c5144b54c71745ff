package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ChallengeResponse answers a url_verification request.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// EventResponse acknowledges an event delivery.
type EventResponse struct {
	Status string `json:"status"`
}
