package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsUpToBurstThenDenies(t *testing.T) {
	a := NewTokenBucketAlgorithm(Config{RequestsPerSecond: 1, BurstSize: 2})

	assert.True(t, a.RequireAccess("s1"))
	assert.True(t, a.RequireAccess("s1"))
	assert.False(t, a.RequireAccess("s1"), "third immediate request should exceed the burst")
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	a := NewTokenBucketAlgorithm(Config{RequestsPerSecond: 1, BurstSize: 1})

	assert.True(t, a.RequireAccess("s1"))
	assert.True(t, a.RequireAccess("s2"), "a different session_id must not share s1's bucket")
}

func TestTokenBucketReleaseIsIdempotent(t *testing.T) {
	a := NewTokenBucketAlgorithm(Config{RequestsPerSecond: 1, BurstSize: 1})

	a.ReleaseAccess("never-acquired")
	a.ReleaseAccess("never-acquired")

	assert.True(t, a.RequireAccess("never-acquired"))
}
