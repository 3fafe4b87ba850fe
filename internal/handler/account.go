package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/errors"
	"github.com/manabi-dev/manabi/internal/middleware"
	"github.com/manabi-dev/manabi/internal/utils"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword also clears the requesting client's cookies: its own
// session was just revoked together with every other one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	var body changePasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.account.ChangePassword(r.Context(), user.Id, body.CurrentPassword, body.NewPassword); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.clearAuthCookies(w)
	utils.WriteMessage(w, http.StatusOK, "Password changed. Please log in again")
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	var body deleteAccountRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.account.DeleteAccount(r.Context(), user.Id, body.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.clearAuthCookies(w)
	utils.WriteMessage(w, http.StatusOK, "Account deleted")
}

type emailChangeRequest struct {
	NewEmail        string `json:"newEmail" validate:"required,email"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
}

func (h *Handler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	var body emailChangeRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.account.RequestEmailChange(r.Context(), user.Id, body.NewEmail, body.CurrentPassword); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "A confirmation email has been sent to the new address")
}

func (h *Handler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		utils.WriteErrorAndStatusCode(w, errors.NewValidation("Token is required"))
		return
	}

	if err := h.account.VerifyEmailChange(r.Context(), tokenStr); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Email address updated")
}

// Me returns the authenticated user's own record, credential fields omitted.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         user.Id,
		"email":      user.Email,
		"name":       user.Name,
		"role":       user.Role,
		"isVerified": user.IsVerified,
	})
}

func userIdFromPath(r *http.Request) (domain.UserId, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		return 0, errors.NewValidation("Invalid user id")
	}
	return id, nil
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userId, err := userIdFromPath(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body updateRoleRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.account.UpdateUserRole(r.Context(), userId, domain.Role(body.Role)); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Role updated")
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	userId, err := userIdFromPath(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body setActiveRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.account.SetUserActive(r.Context(), userId, *body.Active); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "User updated")
}
