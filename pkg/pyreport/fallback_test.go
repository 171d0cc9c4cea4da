package pyreport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbose_When_StandardVerboseOutput_RecoversOutcomes(t *testing.T) {
	t.Parallel()

	stdout := `============================= test session starts =============================
collected 3 items

test_script.py::test_login PASSED                                        [ 33%]
test_script.py::test_search FAILED                                       [ 66%]
test_script.py::test_cart ERROR                                          [100%]
`
	results := ParseVerbose(stdout)
	require.Len(t, results, 3)
	assert.Equal(t, LineResult{NodeID: "test_script.py::test_login", Outcome: "passed"}, results[0])
	assert.Equal(t, LineResult{NodeID: "test_script.py::test_search", Outcome: "failed"}, results[1])
	assert.Equal(t, LineResult{NodeID: "test_script.py::test_cart", Outcome: "error"}, results[2])
}

func TestParseVerbose_When_DuplicateNode_LastOutcomeWins(t *testing.T) {
	t.Parallel()

	stdout := "test_script.py::test_a FAILED\ntest_script.py::test_a PASSED\n"

	results := ParseVerbose(stdout)
	require.Len(t, results, 1)
	assert.Equal(t, "passed", results[0].Outcome)
}

func TestParseVerbose_When_NoTestLines_ReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseVerbose("Traceback (most recent call last):\n  SyntaxError\n"))
	assert.Nil(t, ParseVerbose(""))
}
