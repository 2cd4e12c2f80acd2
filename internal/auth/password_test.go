package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndCompare(t *testing.T) {
	hash, err := HashPassword("pw123456", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, "pw123456", hash)

	require.NoError(t, ComparePassword(hash, "pw123456"))
	require.Error(t, ComparePassword(hash, "wrong-pass"))
}

func TestPasswordInvalidCostFallsBack(t *testing.T) {
	// bcrypt rejects costs above MaxCost; the helper clamps instead.
	hash, err := HashPassword("pw123456", 99)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "pw123456"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}
