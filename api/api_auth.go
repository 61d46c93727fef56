package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/global"
)

type AuthApi struct {
	registry *TokenRegistry
}

func NewAuthApi(registry *TokenRegistry) *AuthApi {
	return &AuthApi{registry: registry}
}

type authInput struct {
	Receipt string `json:"receipt,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Authenticate exchanges a purchase receipt or an attestation token for a
// bearer token. The reference server accepts any non-empty proof; real
// deployments validate it against the platform vendor.
func (aa *AuthApi) Authenticate(c *gin.Context) {
	var input authInput
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid auth payload")
		return
	}
	if input.Receipt == "" && input.Token == "" {
		ApiErrorf(c, http.StatusUnauthorized, "missing proof of standing")
		return
	}

	token, expires, err := aa.registry.Issue(c.Request.Context())
	if err != nil {
		level.Error(global.Logger).Log("error", err, "message", "failed to issue token")
		ApiErrorf(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "OK",
		"token":      token,
		"expires_at": expires.Format(time.RFC3339),
	})
}
