package translate

import (
	"fmt"
	"strings"
	"time"

	"github.com/halvora/srtrans/internal/subtitle"
)

// BuildPrompt renders a batch into the structured translation prompt.
//
// Each entry becomes a <sub> fragment with a 1-based identifier local to the
// batch; timestamps are included as contextual attributes. The context tag is
// always present, empty when no context string was supplied. When priorErrors
// is non-empty the prompt is a retry and carries a diagnostic suffix
// describing the previous validation failures so the model can self-correct.
func BuildPrompt(batch []subtitle.Entry, contextNote, sourceLang, targetLang string, priorErrors []string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translator. Translate each subtitle fragment below")
	if sourceLang != "" {
		prompt.WriteString(" from " + sourceLang)
	}
	prompt.WriteString(" into " + targetLang + ".\n")
	prompt.WriteString("Preserve meaning, tone, and embedded line breaks. Do not translate the tags themselves.\n\n")

	prompt.WriteString("<context>" + contextNote + "</context>\n")

	prompt.WriteString("<subtitles>\n")
	for i, entry := range batch {
		prompt.WriteString(fmt.Sprintf("<sub id=\"%d\" start=\"%s\" end=\"%s\">%s</sub>\n",
			i+1,
			formatTimestamp(entry.StartTime),
			formatTimestamp(entry.EndTime),
			entry.Text))
	}
	prompt.WriteString("</subtitles>\n\n")

	prompt.WriteString("Reply with exactly one <answer> element containing one ")
	prompt.WriteString("<sub id=\"N\">translated text</sub> fragment per input identifier, and nothing else.\n")

	if len(priorErrors) > 0 {
		prompt.WriteString("\nYour previous reply was rejected:\n")
		for _, e := range priorErrors {
			prompt.WriteString("- " + e + "\n")
		}
		prompt.WriteString("Follow the required output format exactly this time.\n")
	}

	return prompt.String()
}

func formatTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
