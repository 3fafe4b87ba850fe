package handler

import (
	"net/http"

	"github.com/manabi-dev/manabi/internal/utils"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := utils.DecodeValidate(r.Body, &creds); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.Register(r.Context(), creds.Email, creds.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusCreated, "Registered. A verification email has been sent")
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"verificationCode" validate:"required"`
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body verifyEmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), body.Email, body.Code); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Email address verified")
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	pair, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.setAuthCookies(w, pair.Access, pair.Refresh)
	utils.WriteMessage(w, http.StatusOK, "Logged in")
}

// Logout revokes whatever tokens the request presents and clears both
// cookies unconditionally: the client-side logout always wins, even when
// server-side revocation partially failed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	access := cookieValue(r, accessTokenCookie)
	refresh := cookieValue(r, refreshTokenCookie)

	h.auth.Logout(r.Context(), access, refresh)

	h.clearAuthCookies(w)
	utils.WriteMessage(w, http.StatusOK, "Logged out")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := cookieValue(r, refreshTokenCookie)
	if refresh == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	access, err := h.auth.Refresh(r.Context(), refresh)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	http.SetCookie(w, h.authCookie(accessTokenCookie, access, h.accessTokenMaxAge()))
	utils.WriteMessage(w, http.StatusOK, "Access token reissued")
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body passwordResetRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "A password reset email has been sent")
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), body.Email, body.Token, body.NewPassword); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Password has been reset")
}
