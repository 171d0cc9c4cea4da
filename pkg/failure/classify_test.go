package failure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_When_TimeoutInOutput_IsRepairable(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	out := `E   playwright._impl._errors.TimeoutError: Timeout 30000ms exceeded.
E   waiting for locator("#login-button")`
	sig, ok := c.Match(out)
	assert.True(t, ok)
	assert.Equal(t, "timeouterror", sig)
}

func TestClassifier_When_StrictModeViolation_IsRepairable(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	assert.True(t, c.Repairable(`Error: strict mode violation: locator("button") resolved to 3 elements`))
}

func TestClassifier_When_CaseDiffers_StillMatches(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	assert.True(t, c.Repairable("E   AssertionError: expected title"))
	assert.True(t, c.Repairable("E   NAMEERROR: name 'pge' is not defined"))
}

func TestClassifier_When_StructuralFailure_IsNotRepairable(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)

	assert.False(t, c.Repairable("E   SyntaxError: invalid syntax"))
	assert.False(t, c.Repairable("ModuleNotFoundError: No module named 'playwright'"))
	assert.False(t, c.Repairable(""))
}

func TestClassifier_When_CustomSignatures_OverrideDefaults(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{"flakyerror"})

	assert.True(t, c.Repairable("E   FlakyError: try again"))
	assert.False(t, c.Repairable("E   TimeoutError: gone"), "defaults are replaced, not merged")
}

func TestNewClassifier_When_SignaturesBlank_FallsBackToDefaults(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]string{})

	assert.True(t, c.Repairable("TimeoutError"))
}
