package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinQuota(t *testing.T) {
	l := NewLimiter()

	for i := 0; i < 3; i++ {
		r := l.Allow("cred-1", 3)
		assert.True(t, r.Allowed)
		assert.Equal(t, 3, r.Limit)
	}

	r := l.Allow("cred-1", 3)
	assert.False(t, r.Allowed)
	assert.Equal(t, 0, r.Remaining)
}

func TestAllowIsolatedPerCredential(t *testing.T) {
	l := NewLimiter()

	r1 := l.Allow("cred-a", 1)
	r2 := l.Allow("cred-b", 1)

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestReset(t *testing.T) {
	l := NewLimiter()

	l.Allow("cred-1", 1)
	assert.False(t, l.Allow("cred-1", 1).Allowed)

	l.Reset("cred-1")
	assert.True(t, l.Allow("cred-1", 1).Allowed)
}
