package api

import (
	"net/http"

	"github.com/subraAntoine/apilexia/internal/apierror"

	"github.com/gin-gonic/gin"
)

type createAPIKeyRequest struct {
	Name        string   `json:"name" binding:"required"`
	Principal   string   `json:"principal" binding:"required"`
	Permissions []string `json:"permissions"`
	Quota       int      `json:"quota"`
	Group       *string  `json:"group"`
}

type createAPIKeyResponse struct {
	ID             string `json:"id"`
	PlaintextToken string `json:"plaintext_token"`
	Name           string `json:"name"`
	Principal      string `json:"principal"`
}

// CreateAPIKey issues a new credential. Unauthenticated by design, to
// bootstrap the first credential an operator needs.
func (h *Handler) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Validation(err.Error(), "", "").Respond(c)
		return
	}
	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = []string{"*"}
	}

	cred, plaintext, err := h.services.Credentials.Issue(c.Request.Context(), req.Name, req.Principal, permissions, req.Quota, req.Group, nil)
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}

	c.JSON(http.StatusOK, createAPIKeyResponse{
		ID:             cred.ID,
		PlaintextToken: plaintext,
		Name:           cred.Name,
		Principal:      cred.Principal,
	})
}

// ListAPIKeys lists every credential issued to the given principal,
// never including the plaintext token or its hash.
func (h *Handler) ListAPIKeys(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		apierror.Validation("principal is required", "principal", "").Respond(c)
		return
	}
	creds, err := h.services.Credentials.List(c.Request.Context(), principal)
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// RevokeAPIKey idempotently revokes a credential by id.
func (h *Handler) RevokeAPIKey(c *gin.Context) {
	id := c.Param("id")
	cred, err := h.services.Credentials.Get(c.Request.Context(), id)
	if err != nil {
		apierror.NotFound("api key").Respond(c)
		return
	}
	if err := h.services.Credentials.Revoke(c.Request.Context(), id, cred.Principal); err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "revoked": true, "message": "credential revoked"})
}

// DeleteAPIKey permanently removes a credential by id.
func (h *Handler) DeleteAPIKey(c *gin.Context) {
	id := c.Param("id")
	cred, err := h.services.Credentials.Get(c.Request.Context(), id)
	if err != nil {
		apierror.NotFound("api key").Respond(c)
		return
	}
	if err := h.services.Credentials.Delete(c.Request.Context(), id, cred.Principal); err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true, "message": "credential deleted"})
}
