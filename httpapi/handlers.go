package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	portalauth "github.com/msscweb/portal-auth"
	authmw "github.com/msscweb/portal-auth/middleware"
)

// saltHeader carries the one-shot salt the client obtained from /gen-code
// back to the login endpoint.
const saltHeader = "x-salt-value"

// genericCredentialMessage is returned for every credential failure so the
// response does not reveal whether the email exists.
const genericCredentialMessage = "Invalid email or password"

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo"`
}

type verifyOTPRequest struct {
	Email      string `json:"email"`
	OTP        string `json:"otp"`
	DeviceInfo string `json:"deviceInfo"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	MobileNo string `json:"mobile_no"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	OTP         string `json:"otp"`
	MobileNo    string `json:"mobile_no"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MobileNo string `json:"mobile_no"`
	PsID     string `json:"psId"`
	Role     string `json:"role"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Malformed request body")
		return false
	}
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, true, "ok")
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, false, "store unavailable")
		return
	}
	writeMessage(w, http.StatusOK, true, "ready")
}

func (s *Server) handleSalt(w http.ResponseWriter, r *http.Request) {
	salt, err := s.engine.Salt(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "Could not generate salt")
		return
	}
	writeJSON(w, http.StatusOK, saltResponse{Success: true, Salt: salt})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := portalauth.WithClientIP(r.Context(), r.RemoteAddr)
	ctx = portalauth.WithDeviceInfo(ctx, req.DeviceInfo)

	_, err := s.engine.Login(ctx, req.Email, req.Password, r.Header.Get(saltHeader))
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, true, "Verification code sent")
	case errors.Is(err, portalauth.ErrAccountLocked):
		writeMessage(w, http.StatusForbidden, false, "Account locked due to repeated failed attempts. Try again later.")
	case errors.Is(err, portalauth.ErrAccountNotFound), errors.Is(err, portalauth.ErrInvalidCredential):
		writeMessage(w, http.StatusUnauthorized, false, genericCredentialMessage)
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, genericCredentialMessage)
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := portalauth.WithClientIP(r.Context(), r.RemoteAddr)

	res, err := s.engine.VerifyOTP(ctx, req.Email, req.OTP, req.DeviceInfo)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, otpResponse{
			Success:        true,
			Token:          res.Token,
			Role:           res.Role,
			PsID:           res.StationID,
			SessionExpired: false,
		})
	case errors.Is(err, portalauth.ErrOTPInvalid):
		writeMessage(w, http.StatusUnauthorized, false, "Invalid verification code")
	case errors.Is(err, portalauth.ErrAccountNotFound):
		writeMessage(w, http.StatusUnauthorized, false, genericCredentialMessage)
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Email and code are required")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.VerifyToken(r.Context(), req.Token)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, portalauth.ErrStoreUnavailable) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, verifyResponse{
			Verified:     false,
			ShouldLogout: portalauth.ShouldLogout(err),
			Message:      "Token verification failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Verified: true,
		Role:     res.Role,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.engine.Logout(r.Context(), req.Token)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, true, "Logged out")
	case errors.Is(err, portalauth.ErrTokenNotProvided):
		writeMessage(w, http.StatusBadRequest, false, "Token is required")
	case errors.Is(err, portalauth.ErrTokenExpired), errors.Is(err, portalauth.ErrTokenInvalid):
		writeMessage(w, http.StatusUnauthorized, false, "Invalid token")
	case errors.Is(err, portalauth.ErrAccountNotFound):
		writeMessage(w, http.StatusUnauthorized, false, "Invalid token")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := authmw.VerifyResultFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, false, "Unauthorized")
		return
	}

	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := portalauth.WithDeviceInfo(r.Context(), r.UserAgent())

	res, err := s.engine.ChangePassword(ctx, identity.Email, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, passwordChangeResponse{
			Success: true,
			Message: "Password updated",
			Token:   res.Token,
		})
	case errors.Is(err, portalauth.ErrWrongOldPassword):
		writeMessage(w, http.StatusUnauthorized, false, "Old password is incorrect")
	case errors.Is(err, portalauth.ErrPasswordReuse):
		writeMessage(w, http.StatusConflict, false, "New password was used recently")
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Old and new passwords are required")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.ForgotPassword(r.Context(), req.MobileNo)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, forgotPasswordResponse{Success: true, OTP: res.CodeDigest})
	case errors.Is(err, portalauth.ErrAccountNotFound):
		writeMessage(w, http.StatusNotFound, false, "No account found for this mobile number")
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Mobile number is required")
	case errors.Is(err, portalauth.ErrOTPDelivery):
		writeMessage(w, http.StatusBadGateway, false, "Could not deliver verification code")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.engine.ResetPasswordWithOTP(r.Context(), req.MobileNo, req.OTP, req.NewPassword)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, true, "Password updated")
	case errors.Is(err, portalauth.ErrOTPInvalid):
		writeMessage(w, http.StatusUnauthorized, false, "Invalid verification code")
	case errors.Is(err, portalauth.ErrAccountNotFound):
		writeMessage(w, http.StatusNotFound, false, "No account found for this mobile number")
	case errors.Is(err, portalauth.ErrPasswordReuse):
		writeMessage(w, http.StatusConflict, false, "New password was used recently")
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Mobile number, code, and new password are required")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.CreateAccount(r.Context(), portalauth.CreateAccountRequest{
		Email:      req.Email,
		Credential: req.Password,
		MobileNo:   req.MobileNo,
		StationID:  req.PsID,
		Role:       req.Role,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, signupResponse{Success: true, Token: res.Token})
	case errors.Is(err, portalauth.ErrAccountExists):
		writeMessage(w, http.StatusConflict, false, "An account with this email already exists")
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Email and password are required")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accts, err := s.engine.Accounts(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
		return
	}

	users := make([]userSummary, 0, len(accts))
	for _, a := range accts {
		users = append(users, userSummary{
			Email:     a.Email,
			MobileNo:  a.MobileNo,
			Role:      a.Role,
			PsID:      a.StationID,
			CreatedAt: a.CreatedAt.Unix(),
			Locked:    a.Locked,
		})
	}
	writeJSON(w, http.StatusOK, usersResponse{Success: true, Users: users})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	err := s.engine.DeleteAccount(r.Context(), email)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, true, "User deleted")
	case errors.Is(err, portalauth.ErrAccountNotFound):
		writeMessage(w, http.StatusNotFound, false, "No such user")
	case errors.Is(err, portalauth.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Email is required")
	default:
		writeMessage(w, http.StatusInternalServerError, false, "Something went wrong")
	}
}
