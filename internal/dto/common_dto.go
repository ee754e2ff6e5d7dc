package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

type DeviceTokenRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

type DeviceTokenResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

type BadgeResponse struct {
	Badge int `json:"badge"`
}
