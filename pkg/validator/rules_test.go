package validator_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/accountd/pkg/validator"
)

func TestApplyCollectsAllViolations(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.Required("company_name", ""),
		validator.Email("admin_email", "not-an-email"),
		validator.True("accept_terms", false, "terms must be accepted"),
	)

	require.Error(t, err)
	ve := validator.Extract(err)
	require.Len(t, ve, 3)
	assert.True(t, ve.Has("company_name"))
	assert.True(t, ve.Has("admin_email"))
	assert.True(t, ve.Has("accept_terms"))
}

func TestApplyPassesWhenAllRulesHold(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.Required("company_name", "Acme Corp"),
		validator.LenBetween("company_name", "Acme Corp", 3, 30),
		validator.Email("admin_email", "admin@test.com"),
	)
	assert.NoError(t, err)
}

func TestRules(t *testing.T) {
	t.Parallel()

	t.Run("LenBetween", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, validator.Apply(validator.LenBetween("f", "ab", 3, 30)))
		assert.NoError(t, validator.Apply(validator.LenBetween("f", "abc", 3, 30)))
	})

	t.Run("Matches", func(t *testing.T) {
		t.Parallel()
		realm := regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)
		assert.NoError(t, validator.Apply(validator.Matches("realm", "acme-corp", realm, "bad realm")))
		assert.Error(t, validator.Apply(validator.Matches("realm", "acme corp", realm, "bad realm")))
	})

	t.Run("Excludes", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, validator.Apply(
			validator.Excludes("default_roles", []string{"user", "super-admin"}, "super-admin", "forbidden role")))
		assert.NoError(t, validator.Apply(
			validator.Excludes("default_roles", []string{"user", "admin"}, "super-admin", "forbidden role")))
	})

	t.Run("When skips rule on false condition", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validator.Apply(
			validator.When(false, validator.Required("phone", ""))))
		assert.Error(t, validator.Apply(
			validator.When(true, validator.Required("phone", ""))))
	})
}

func TestIsValidationError(t *testing.T) {
	t.Parallel()

	err := validator.Apply(validator.Required("f", ""))
	assert.True(t, validator.IsValidationError(err))
	assert.False(t, validator.IsValidationError(nil))
}
