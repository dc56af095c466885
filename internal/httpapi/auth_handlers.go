package httpapi

import (
	"net/http"
	"sort"

	"sportsroz.org/internal/audit"
	"sportsroz.org/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	OfficeID string `json:"officeId"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		OfficeID: req.OfficeID,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{"user_id": result.UserID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"userId":       result.UserID,
		"token":        result.Token,
		"expiryTime":   result.ExpiryTime,
		"intervalTime": result.IntervalTime,
	})
}

type verifyOTPRequest struct {
	Token string `json:"token"`
	OTP   string `json:"otp"`
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.VerifyOTP(r.Context(), req.Token, req.OTP)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	msg := "Email verified successfully"
	if result.TempPasswordSent {
		msg = "Email verified successfully. A temporary password has been sent to your email."
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

func (a *API) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	issue, err := a.auth.ResendOTP(r.Context(), req.Email)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        issue.Token,
		"expiryTime":   issue.ExpiryTime,
		"intervalTime": issue.IntervalTime,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": result.User.ID})
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":           result.Tokens.AccessToken,
		"accessTokenExpiresIn":  result.Tokens.AccessExpiresIn,
		"refreshToken":          result.Tokens.RefreshToken,
		"refreshTokenExpiresIn": result.Tokens.RefreshExpiresIn,
		"user":                  result.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type changePasswordRequest struct {
	Email        string `json:"email"`
	TempPassword string `json:"tempPassword"`
	NewPassword  string `json:"newPassword"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Email, req.TempPassword, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_changed", map[string]any{"email": req.Email})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}
	resp := map[string]any{"user": principal.User}
	if principal.Role != nil {
		resp["role"] = principal.Role
	}
	if len(principal.Permissions) > 0 {
		perms := make([]string, 0, len(principal.Permissions))
		for name := range principal.Permissions {
			perms = append(perms, name)
		}
		sort.Strings(perms)
		resp["permissions"] = perms
	}
	writeJSON(w, http.StatusOK, resp)
}
