package inbound

import (
	"net/http"
	"time"
)

type RegisterRequest struct {
	Identity string `json:"identity"`
}

type RegisterResponse struct {
	RegistrationID  string    `json:"registration_id"`
	Identity        string    `json:"identity"`
	Secret          string    `json:"secret"`
	ProvisioningURI string    `json:"provisioning_uri"`
	FrameBudget     int       `json:"frame_budget"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (RegisterResponse) StatusCode() int { return http.StatusCreated }

func (RegisterResponse) Message() string {
	return "Add the secret to your authenticator app, then send frames until a face is captured."
}

type RegisterFrameResponse struct {
	RegistrationID string `json:"registration_id"`
	Identity       string `json:"identity"`
	State          string `json:"state"`
	FramesLeft     int    `json:"frames_left"`
}

type RegisterCancelResponse struct{}

func (RegisterCancelResponse) Message() string { return "Registration cancelled" }

type LoginRequest struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
}

type LoginResponse struct {
	SessionID      string    `json:"session_id"`
	Identity       string    `json:"identity"`
	Deadline       time.Time `json:"deadline"`
	TickIntervalMS int64     `json:"tick_interval_ms"`
}

func (LoginResponse) Message() string { return "Code accepted. Look at the camera." }

type VerifyResponse struct {
	SessionID   string    `json:"session_id"`
	Identity    string    `json:"identity"`
	Status      string    `json:"status"`
	Ticks       int       `json:"ticks"`
	Distance    *float64  `json:"distance,omitempty"`
	Deadline    time.Time `json:"deadline"`
	AccessToken string    `json:"access_token,omitempty"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
}

type AccountResponse struct {
	Identity   string     `json:"identity"`
	Enrolled   bool       `json:"enrolled"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
	HasSecret  bool       `json:"has_secret"`
}

type AccountListResponse []AccountResponse

func (r AccountListResponse) Meta() map[string]any {
	return map[string]any{"total": len(r)}
}

type AccountDeleteResponse struct{}

func (AccountDeleteResponse) Message() string { return "Account removed" }

type AccountProvisioningResponse struct {
	Identity        string     `json:"identity"`
	ProvisioningURI string     `json:"provisioning_uri"`
	EnrolledAt      *time.Time `json:"enrolled_at,omitempty"`
}
