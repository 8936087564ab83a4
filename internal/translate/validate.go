package translate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FormatError reports a model response that violated the structural contract.
// It is the only error category the orchestrator retries on.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "response format error: " + e.Reason
}

var (
	answerRe   = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	fragmentRe = regexp.MustCompile(`(?s)<sub\s+id="(\d+)"[^>]*>(.*?)</sub>`)
)

// Validate parses a model response against the answer contract: exactly one
// <answer> container (first occurrence wins) holding expected <sub> fragments.
// Fragments may arrive in any order; the result is sorted by identifier and
// each text payload is trimmed of surrounding whitespace. Duplicate
// identifiers are rejected; gaps in the identifier sequence are tolerated.
func Validate(response string, expected int) ([]string, error) {
	container := answerRe.FindStringSubmatch(response)
	if container == nil {
		return nil, &FormatError{Reason: "missing <answer> container"}
	}

	matches := fragmentRe.FindAllStringSubmatch(container[1], -1)
	if len(matches) != expected {
		return nil, &FormatError{
			Reason: fmt.Sprintf("fragment count mismatch: expected %d, got %d", expected, len(matches)),
		}
	}

	type fragment struct {
		id   int
		text string
	}

	fragments := make([]fragment, 0, len(matches))
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil || id < 1 {
			return nil, &FormatError{Reason: fmt.Sprintf("invalid fragment identifier %q", m[1])}
		}
		if seen[id] {
			return nil, &FormatError{Reason: fmt.Sprintf("duplicate fragment identifier %d", id)}
		}
		seen[id] = true
		fragments = append(fragments, fragment{id: id, text: strings.TrimSpace(m[2])})
	}

	sort.Slice(fragments, func(i, j int) bool { return fragments[i].id < fragments[j].id })

	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		texts = append(texts, f.text)
	}

	return texts, nil
}
