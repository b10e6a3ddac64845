package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("jordan", "jordan@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_ACTIVE, user.Status)
	assert.NotEqual(t, "s3cret-pass", user.Password, "password must be stored hashed")
	assert.True(t, CheckPasswordHash("s3cret-pass", user.Password))
	assert.False(t, CheckPasswordHash("wrong-pass", user.Password))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("jo", "not-an-email", "s3cret-pass")
	assert.Error(t, err)

	_, err = CreateUser("jordan", "jordan@example.com", "short")
	assert.Error(t, err)
}

func TestHashAPIToken(t *testing.T) {
	hash := HashAPIToken("tok_abc123")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIToken("tok_abc123"), "hash must be deterministic")
	assert.NotEqual(t, hash, HashAPIToken("tok_abc124"))
}

func TestDefaultFreePlan(t *testing.T) {
	plan := DefaultFreePlan(42)
	assert.Equal(t, uint(42), plan.UserID)
	assert.Equal(t, PlanFree, plan.PlanType)
	assert.Equal(t, FreeTierCredits, plan.CreditsRemaining)
	assert.Equal(t, PlanStatusActive, plan.Status)
}
