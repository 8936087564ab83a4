package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/halvora/srtrans/internal/subtitle"
	"github.com/halvora/srtrans/pkg/log"
	"github.com/rivo/uniseg"
)

const (
	// previewMinLen is the trimmed length an entry must reach to count as a
	// qualifying entry in the preview scan.
	previewMinLen = 10
	// previewAnchor is the number of qualifying entries skipped before
	// looking for a novel line.
	previewAnchor = 5
	// previewMaxLen is the grapheme-cluster budget of a preview before
	// truncation.
	previewMaxLen = 80
)

// SelectStream picks the subtitle stream to translate. A single candidate is
// selected without prompting. With multiple candidates each stream is
// extracted to a scratch file to derive a disambiguating preview, then the
// chooser blocks for the operator's pick. Interruption through ctx aborts
// the selection. Scratch files are removed before returning regardless of
// outcome.
func SelectStream(
	ctx context.Context,
	prober Prober,
	reader subtitle.Reader,
	chooser Chooser,
	logger *log.Logger,
	path string,
) (StreamDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return StreamDescriptor{}, err
	}

	streams, err := prober.ListStreams(path)
	if err != nil {
		return StreamDescriptor{}, err
	}
	if len(streams) == 0 {
		return StreamDescriptor{}, fmt.Errorf("no subtitle streams found in %s", path)
	}
	if len(streams) == 1 {
		logger.Info("single subtitle stream %d (%s), selecting it", streams[0].Index, streams[0].Language)
		return streams[0], nil
	}

	for i := range streams {
		if err := ctx.Err(); err != nil {
			return StreamDescriptor{}, err
		}
		streams[i].Preview = streamPreview(prober, reader, logger, path, streams[i].Index)
	}

	pick, err := chooser.Choose(ctx, streams)
	if err != nil {
		return StreamDescriptor{}, err
	}
	return streams[pick], nil
}

// streamPreview extracts one stream to a scratch file and derives its
// preview. A failed extraction or parse degrades to an empty preview; the
// candidate stays selectable either way.
func streamPreview(prober Prober, reader subtitle.Reader, logger *log.Logger, path string, streamIndex int) string {
	scratch, err := prober.ExtractStream(path, streamIndex)
	if err != nil {
		logger.Warn("preview extraction failed for stream %d: %v", streamIndex, err)
		return ""
	}
	defer os.Remove(scratch)

	file, err := reader.Read(scratch)
	if err != nil {
		logger.Warn("preview parse failed for stream %d: %v", streamIndex, err)
		return ""
	}

	return Preview(file.Entries)
}

// Preview derives a short disambiguating line for a stream: skip past the
// fifth entry whose trimmed text is at least previewMinLen characters, then
// take the first entry after it whose trimmed text has not appeared earlier
// in the scan. Returns "" when no entry qualifies.
func Preview(entries []subtitle.Entry) string {
	seen := make(map[string]bool)
	qualifying := 0
	anchored := false

	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)

		if anchored {
			if !seen[text] {
				return truncatePreview(text)
			}
			seen[text] = true
			continue
		}

		seen[text] = true
		if uniseg.GraphemeClusterCount(text) >= previewMinLen {
			qualifying++
			if qualifying == previewAnchor {
				anchored = true
			}
		}
	}

	return ""
}

// truncatePreview caps the preview at previewMaxLen grapheme clusters with a
// trailing ellipsis when the text is longer.
func truncatePreview(text string) string {
	if uniseg.GraphemeClusterCount(text) <= previewMaxLen {
		return text
	}

	var sb strings.Builder
	gr := uniseg.NewGraphemes(text)
	for i := 0; i < previewMaxLen && gr.Next(); i++ {
		sb.WriteString(gr.Str())
	}
	sb.WriteString("…")
	return sb.String()
}

// ConsoleChooser prompts the operator on a terminal. Invalid input is
// re-prompted without a ceiling; end of input or context cancellation
// aborts. Input is read on a separate goroutine so a blocked terminal read
// cannot swallow an interrupt.
type ConsoleChooser struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsoleChooser(in io.Reader, out io.Writer) *ConsoleChooser {
	return &ConsoleChooser{
		in:  bufio.NewReader(in),
		out: out,
	}
}

type readResult struct {
	line string
	err  error
}

func (c *ConsoleChooser) Choose(ctx context.Context, candidates []StreamDescriptor) (int, error) {
	fmt.Fprintln(c.out, renderCandidateTable(candidates))

	lines := make(chan readResult)
	go func() {
		for {
			line, err := c.in.ReadString('\n')
			select {
			case lines <- readResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		fmt.Fprintf(c.out, "Select subtitle stream [1-%d]: ", len(candidates))

		var res readResult
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case res = <-lines:
		}

		pick, convErr := strconv.Atoi(strings.TrimSpace(res.line))
		if convErr != nil || pick < 1 || pick > len(candidates) {
			if res.err != nil {
				return 0, fmt.Errorf("stream selection aborted: %w", res.err)
			}
			fmt.Fprintf(c.out, "invalid selection %q\n", strings.TrimSpace(res.line))
			continue
		}
		return pick - 1, nil
	}
}
