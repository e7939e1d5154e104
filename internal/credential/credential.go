// Package credential implements the opaque bearer token scheme used to
// authenticate API callers: issuance, verification and revocation of
// Credential records.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

// tokenRandomBytes controls the entropy of the generated plaintext
// secret, before hex-encoding and prefixing.
const tokenRandomBytes = 24

// Failure enumerates the reasons verification can reject a token. The
// caller maps these onto the AUTH_* error codes in the API layer.
type Failure string

const (
	FailureMissing   Failure = "AUTH_MISSING"
	FailureMalformed Failure = "AUTH_MALFORMED"
	FailureInvalid   Failure = "AUTH_INVALID"
	FailureRevoked   Failure = "AUTH_REVOKED"
	FailureExpired   Failure = "AUTH_EXPIRED"
)

// AuthError wraps a Failure so handlers can type-switch on it.
type AuthError struct {
	Reason Failure
}

func (e *AuthError) Error() string {
	return string(e.Reason)
}

func newAuthError(reason Failure) error {
	return &AuthError{Reason: reason}
}

// Service issues and verifies credentials against the credential store.
type Service struct {
	repo   repository.CredentialRepository
	cfg    *config.Config
}

func NewService(repo repository.CredentialRepository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Issue creates a new credential for principal and returns the
// plaintext token exactly once; only its salted hash is persisted.
func (s *Service) Issue(ctx context.Context, name, principal string, permissions []string, quota int, groupID *string, expiresAt *time.Time) (*models.Credential, string, error) {
	if quota <= 0 {
		quota = s.cfg.DefaultQuota
	}

	plaintext, err := generateToken(s.cfg.TokenPrefix)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	cred := &models.Credential{
		Name:        name,
		KeyHash:     s.hash(plaintext),
		Principal:   principal,
		GroupID:     groupID,
		Permissions: permissions,
		Quota:       quota,
		ExpiresAt:   expiresAt,
	}

	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, "", fmt.Errorf("create credential: %w", err)
	}

	logger.AuthEvent("credential_issued", cred.ID, true, "principal", principal)
	return cred, plaintext, nil
}

// Verify resolves an Authorization header value ("Bearer <token>") to
// the credential it names, or a typed AuthError describing why not.
func (s *Service) Verify(ctx context.Context, authHeader string) (*models.Credential, error) {
	if authHeader == "" {
		return nil, newAuthError(FailureMissing)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, newAuthError(FailureMalformed)
	}

	token := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(token, s.cfg.TokenPrefix) || len(token) < len(s.cfg.TokenPrefix)+20 {
		return nil, newAuthError(FailureMalformed)
	}

	computedHash := s.hash(token)
	cred, err := s.repo.FindByHash(ctx, computedHash)
	if err != nil {
		logger.AuthEvent("credential_verify", "", false, "reason", "not_found")
		return nil, newAuthError(FailureInvalid)
	}
	if !constantTimeEqual(computedHash, cred.KeyHash) {
		logger.AuthEvent("credential_verify", cred.ID, false, "reason", "hash_mismatch")
		return nil, newAuthError(FailureInvalid)
	}

	if cred.Revoked {
		logger.AuthEvent("credential_verify", cred.ID, false, "reason", "revoked")
		return nil, newAuthError(FailureRevoked)
	}

	if cred.ExpiresAt != nil && cred.ExpiresAt.Before(time.Now()) {
		logger.AuthEvent("credential_verify", cred.ID, false, "reason", "expired")
		return nil, newAuthError(FailureExpired)
	}

	now := time.Now()
	if err := s.repo.TouchLastUsed(ctx, cred.ID, now); err != nil {
		logger.Warn("failed to record credential last-used timestamp", "credential_id", cred.ID, "error", err)
	}
	cred.LastUsedAt = &now

	logger.AuthEvent("credential_verify", cred.ID, true)
	return cred, nil
}

// Revoke marks a credential as no longer usable. It does not delete
// the row so that past jobs created under it remain attributable.
func (s *Service) Revoke(ctx context.Context, id, principal string) error {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cred.Principal != principal {
		return errors.New("not found")
	}
	return s.repo.SetRevoked(ctx, id, true)
}

// Get fetches a credential by id, for the unauthenticated key-management
// endpoints that look a credential up before acting on it.
func (s *Service) Get(ctx context.Context, id string) (*models.Credential, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every credential issued to principal, newest first.
func (s *Service) List(ctx context.Context, principal string) ([]models.Credential, error) {
	return s.repo.ListByPrincipal(ctx, principal)
}

// Delete permanently removes a credential, restricted to its owner.
func (s *Service) Delete(ctx context.Context, id, principal string) error {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cred.Principal != principal {
		return errors.New("not found")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) hash(token string) string {
	h := sha256.New()
	h.Write([]byte(s.cfg.TokenSalt))
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// constantTimeEqual re-checks the hash match found by the repository
// lookup without a data-dependent branch, so row retrieval and the
// final accept/reject decision don't race each other on timing.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func generateToken(prefix string) (string, error) {
	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}
