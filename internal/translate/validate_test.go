package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReordersByIdentifier(t *testing.T) {
	t.Parallel()

	response := `Some chatter before.
<answer>
<sub id="3">third</sub>
<sub id="1">first</sub>
<sub id="2">second</sub>
</answer>`

	texts, err := Validate(response, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, texts)
}

func TestValidateTrimsWhitespace(t *testing.T) {
	t.Parallel()

	texts, err := Validate("<answer><sub id=\"1\">\n  padded  \n</sub></answer>", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"padded"}, texts)
}

func TestValidateUsesFirstContainer(t *testing.T) {
	t.Parallel()

	response := `<answer><sub id="1">kept</sub></answer><answer><sub id="1">ignored</sub></answer>`
	texts, err := Validate(response, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, texts)
}

func TestValidateMissingContainer(t *testing.T) {
	t.Parallel()

	_, err := Validate(`<sub id="1">orphan</sub>`, 1)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "missing <answer> container")
}

func TestValidateCountMismatch(t *testing.T) {
	t.Parallel()

	tooFew := `<answer><sub id="1">only</sub></answer>`
	_, err := Validate(tooFew, 2)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "expected 2, got 1")

	tooMany := `<answer><sub id="1">a</sub><sub id="2">b</sub><sub id="3">c</sub></answer>`
	_, err = Validate(tooMany, 2)
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "expected 2, got 3")
}

func TestValidateDuplicateIdentifier(t *testing.T) {
	t.Parallel()

	_, err := Validate(`<answer><sub id="1">a</sub><sub id="1">b</sub></answer>`, 2)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "duplicate fragment identifier 1")
}

func TestValidateMultilinePayload(t *testing.T) {
	t.Parallel()

	texts, err := Validate("<answer><sub id=\"1\">line one\nline two</sub></answer>", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"line one\nline two"}, texts)
}
