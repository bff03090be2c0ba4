package httpapi

import (
	"encoding/json"
	"net/http"
)

// Response is the standard envelope for portal API responses.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// saltResponse is returned by the salt endpoint.
type saltResponse struct {
	Success bool   `json:"success"`
	Salt    string `json:"salt"`
}

// otpResponse is returned after a successful code exchange.
type otpResponse struct {
	Success        bool   `json:"success"`
	Token          string `json:"token"`
	Role           string `json:"role"`
	PsID           string `json:"psId"`
	SessionExpired bool   `json:"sessionExpired"`
}

// verifyResponse is returned by the token verification endpoint.
type verifyResponse struct {
	Verified     bool   `json:"verified"`
	Role         string `json:"role,omitempty"`
	ShouldLogout bool   `json:"shouldLogout"`
	Message      string `json:"message,omitempty"`
}

// passwordChangeResponse carries the fresh token issued after rotation.
type passwordChangeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

// forgotPasswordResponse carries the SHA-256 of the issued code.
type forgotPasswordResponse struct {
	Success bool   `json:"success"`
	OTP     string `json:"otp"`
}

// signupResponse carries the long-lived bootstrap token.
type signupResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// userSummary is the roster view of an account.
type userSummary struct {
	Email     string `json:"email"`
	MobileNo  string `json:"mobile_no,omitempty"`
	Role      string `json:"role"`
	PsID      string `json:"psId,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	Locked    bool   `json:"locked"`
}

// usersResponse is returned by the roster endpoint.
type usersResponse struct {
	Success bool          `json:"success"`
	Users   []userSummary `json:"users"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, Response{Success: success, Message: message})
}
