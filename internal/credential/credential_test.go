package credential

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dbPath := t.TempDir() + "/credential_test.db"
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })

	cfg := &config.Config{
		TokenSalt:    "test-salt",
		TokenPrefix:  "lx_",
		DefaultQuota: 60,
	}
	repo := repository.NewCredentialRepository(database.DB)
	return NewService(repo, cfg)
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		cred, plaintext, err := svc.Issue(ctx, "ci-bot", "principal-1", []string{"*"}, 0, nil, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, cred.ID)
		assert.Equal(t, 60, cred.Quota)
		assert.True(t, len(plaintext) > len("lx_"))

		resolved, err := svc.Verify(ctx, "Bearer "+plaintext)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, resolved.ID)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		_, err := svc.Verify(ctx, "")
		assert.Equal(t, FailureMissing, err.(*AuthError).Reason)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		_, err := svc.Verify(ctx, "Basic abc123")
		assert.Equal(t, FailureMalformed, err.(*AuthError).Reason)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		_, err := svc.Verify(ctx, "Bearer lx_0000000000000000000000000000000000000000000000")
		assert.Equal(t, FailureInvalid, err.(*AuthError).Reason)
	})

	t.Run("TooShortRejected", func(t *testing.T) {
		token := "lx_" + strings.Repeat("a", 19)
		_, err := svc.Verify(ctx, "Bearer "+token)
		assert.Equal(t, FailureMalformed, err.(*AuthError).Reason)
	})

	t.Run("MinimumLengthAccepted", func(t *testing.T) {
		token := "lx_" + strings.Repeat("a", 20)
		_, err := svc.Verify(ctx, "Bearer "+token)
		assert.Equal(t, FailureInvalid, err.(*AuthError).Reason)
	})

	t.Run("Revoked", func(t *testing.T) {
		cred, plaintext, err := svc.Issue(ctx, "to-revoke", "principal-2", []string{"*"}, 0, nil, nil)
		require.NoError(t, err)
		require.NoError(t, svc.Revoke(ctx, cred.ID, "principal-2"))

		_, err = svc.Verify(ctx, "Bearer "+plaintext)
		assert.Equal(t, FailureRevoked, err.(*AuthError).Reason)
	})

	t.Run("Expired", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		_, plaintext, err := svc.Issue(ctx, "expired", "principal-3", []string{"*"}, 0, nil, &past)
		require.NoError(t, err)

		_, err = svc.Verify(ctx, "Bearer "+plaintext)
		assert.Equal(t, FailureExpired, err.(*AuthError).Reason)
	})
}

func TestList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Issue(ctx, "a", "principal-list", []string{"*"}, 0, nil, nil)
	require.NoError(t, err)
	_, _, err = svc.Issue(ctx, "b", "principal-list", []string{"*"}, 0, nil, nil)
	require.NoError(t, err)

	creds, err := svc.List(ctx, "principal-list")
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, constantTimeEqual("abc", "abc"))
	assert.False(t, constantTimeEqual("abc", "abd"))
	assert.False(t, constantTimeEqual("abc", "ab"))
}
