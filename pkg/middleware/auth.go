package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/credential"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

const (
	ctxCredential = "credential"
	ctxPrincipal  = "principal"
)

// AuthMiddleware verifies the bearer credential on every protected
// request and stashes the resolved credential/principal on the
// gin context for downstream handlers.
func AuthMiddleware(credentials *credential.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := credentials.Verify(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			reason := credential.FailureInvalid
			if authErr, ok := err.(*credential.AuthError); ok {
				reason = authErr.Reason
			}
			apierror.Auth(wireAuthCode(reason), authFailureMessage(reason)).Respond(c)
			return
		}
		c.Set(ctxCredential, cred)
		c.Set(ctxPrincipal, cred.Principal)
		c.Next()
	}
}

// wireAuthCode maps the internal AUTH_* failure reasons onto the
// authentication_error codes callers receive on the wire.
func wireAuthCode(reason credential.Failure) string {
	switch reason {
	case credential.FailureMissing:
		return "missing_authorization"
	case credential.FailureMalformed, credential.FailureInvalid:
		return "invalid_api_key"
	case credential.FailureRevoked:
		return "auth_revoked"
	case credential.FailureExpired:
		return "auth_expired"
	default:
		return "invalid_api_key"
	}
}

func authFailureMessage(reason credential.Failure) string {
	switch reason {
	case credential.FailureMissing:
		return "missing authentication"
	case credential.FailureMalformed:
		return "malformed authorization header"
	case credential.FailureInvalid:
		return "invalid credential"
	case credential.FailureRevoked:
		return "credential has been revoked"
	case credential.FailureExpired:
		return "credential has expired"
	default:
		return "authentication failed"
	}
}

// RateLimitMiddleware enforces the per-credential fixed-window quota.
// It must run after AuthMiddleware and must not be mounted on the
// excluded endpoints (health, polling GET, cancel).
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := CredentialFrom(c)
		if cred == nil {
			c.Next()
			return
		}

		result := limiter.Allow(cred.ID, cred.Quota)
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			apierror.RateLimit(fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter)).Respond(c)
			return
		}
		c.Next()
	}
}

// CredentialFrom extracts the authenticated credential stored by
// AuthMiddleware, or nil if the request was never authenticated.
func CredentialFrom(c *gin.Context) *models.Credential {
	v, ok := c.Get(ctxCredential)
	if !ok {
		return nil
	}
	cred, _ := v.(*models.Credential)
	return cred
}

// PrincipalFrom extracts the authenticated principal stored by
// AuthMiddleware, or "" if the request was never authenticated.
func PrincipalFrom(c *gin.Context) string {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return ""
	}
	principal, _ := v.(string)
	return principal
}
