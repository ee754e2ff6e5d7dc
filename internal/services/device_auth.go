package services

import (
	"fmt"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceAuthService issues anonymous device-session tokens. The app has no
// user accounts (anonymity is the point); a token only ties requests from
// one install together.
type DeviceAuthService struct {
	cfg *config.Config
}

func NewDeviceAuthService(cfg *config.Config) *DeviceAuthService {
	return &DeviceAuthService{cfg: cfg}
}

// IssueDeviceToken mints a signed token for a new or returning device. An
// empty deviceID allocates a fresh one.
func (s *DeviceAuthService) IssueDeviceToken(deviceID string) (token string, id string, err error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  deviceID,
		"anon": true,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign device token: %w", err)
	}
	return signed, deviceID, nil
}
