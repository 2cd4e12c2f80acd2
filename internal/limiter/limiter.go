// Package limiter bounds repeated login attempts per account and source address.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login attempt for (email, ip) may proceed.
	Allow(ctx context.Context, email, ipHash string) (bool, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email, ipHash string) error
	// Failure records a failed attempt.
	Failure(ctx context.Context, email, ipHash string) error
}

// HashIP derives a stable non-reversible key component from a client address.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}

// Noop never blocks. It backs deployments without redis and the tests.
type Noop struct{}

func (Noop) Allow(context.Context, string, string) (bool, error) { return true, nil }
func (Noop) Success(context.Context, string, string) error       { return nil }
func (Noop) Failure(context.Context, string, string) error       { return nil }
