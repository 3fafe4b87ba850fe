package handler

import "net/http"

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// authCookie builds an auth cookie with the deployment's attributes:
// httpOnly always, Secure in production, SameSite=None cross-site in
// production and Lax in development.
func (h *Handler) authCookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.cfg.Public.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Path:     "/",
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: sameSite,
	}
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, h.authCookie(accessTokenCookie, access, h.accessTokenMaxAge()))
	http.SetCookie(w, h.authCookie(refreshTokenCookie, refresh, h.refreshTokenMaxAge()))
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.authCookie(accessTokenCookie, "", -1))
	http.SetCookie(w, h.authCookie(refreshTokenCookie, "", -1))
}

// cookieValue returns the named cookie's value, or "" when absent.
func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
