package handler

import (
	"github.com/manabi-dev/manabi/internal/config"
	"github.com/manabi-dev/manabi/internal/service"
	"github.com/manabi-dev/manabi/internal/token"
)

type Handler struct {
	auth    service.AuthService
	account service.AccountService
	cfg     *config.Config
}

func New(auth service.AuthService, account service.AccountService, cfg *config.Config) *Handler {
	return &Handler{auth: auth, account: account, cfg: cfg}
}

func (h *Handler) accessTokenMaxAge() int {
	return int(token.ParseExpiry(h.cfg.Public.AccessTokenTTL).Seconds())
}

func (h *Handler) refreshTokenMaxAge() int {
	return int(token.ParseExpiry(h.cfg.Public.RefreshTokenTTL).Seconds())
}
