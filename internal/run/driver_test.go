package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/halvora/srtrans/internal/config"
	"github.com/halvora/srtrans/internal/media"
	"github.com/halvora/srtrans/internal/subtitle"
	"github.com/halvora/srtrans/internal/translate"
	"github.com/halvora/srtrans/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var promptFragmentRe = regexp.MustCompile(`(?s)<sub id="(\d+)"[^>]*>(.*?)</sub>`)

// echoClient answers every prompt with a well-formed response translating
// each fragment to "T:" + original. It can be scripted to fail fatally from
// a given call onward.
type echoClient struct {
	calls     int
	fatalFrom int // 1-based call number; 0 means never fail
	fatalErr  error
}

func (c *echoClient) Complete(_ context.Context, prompt string) (string, error) {
	c.calls++
	if c.fatalFrom != 0 && c.calls >= c.fatalFrom {
		return "", c.fatalErr
	}
	var sb strings.Builder
	sb.WriteString("<answer>")
	for _, m := range promptFragmentRe.FindAllStringSubmatch(prompt, -1) {
		sb.WriteString(fmt.Sprintf(`<sub id="%s">T:%s</sub>`, m[1], m[2]))
	}
	sb.WriteString("</answer>")
	return sb.String(), nil
}

func quietLogger() *log.Logger {
	return log.NewWriterLogger(&strings.Builder{}, log.LevelError+1)
}

func sampleSRT(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "%d\n00:00:%02d,000 --> 00:00:%02d,500\nThis is subtitle line number %d.\n\n", i, i, i, i)
	}
	return sb.String()
}

func testDriver(t *testing.T, client translate.CompletionClient, entries int) (*Driver, config.Config) {
	t.Helper()
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "in.srt")
	require.NoError(t, os.WriteFile(inputPath, []byte(sampleSRT(entries)), 0o644))

	cfg := config.Config{
		SubtitlePath:   inputPath,
		OutputPath:     filepath.Join(dir, "out.srt"),
		TargetLanguage: "German",
		WindowSize:     4,
		Model:          "test-model",
		BaseURL:        "https://api.example.com/v1",
		APIKey:         "key",
		Timeout:        5,
	}

	logger := quietLogger()
	driver := NewDriver(
		cfg,
		logger,
		translate.NewOrchestrator(client, logger),
		subtitle.NewReader(),
		subtitle.NewWriter(),
		nil,
		nil,
	)
	return driver, cfg
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	driver, cfg := testDriver(t, client, 10)

	require.NoError(t, driver.Run(context.Background()))

	// 10 entries, window 4: batches of 4, 4, 2
	assert.Equal(t, 3, client.calls)

	// temp file gone, final output present
	_, err := os.Stat(cfg.OutputPath + CheckpointSuffix)
	assert.True(t, os.IsNotExist(err))

	result, err := subtitle.NewReader().Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, result.Entries, 10)

	source, err := subtitle.NewReader().Read(cfg.SubtitlePath)
	require.NoError(t, err)
	for i, entry := range result.Entries {
		assert.Equal(t, source.Entries[i].Index, entry.Index)
		assert.Equal(t, source.Entries[i].StartTime, entry.StartTime)
		assert.Equal(t, source.Entries[i].EndTime, entry.EndTime)
		assert.Equal(t, "T:"+source.Entries[i].Text, entry.Text)
	}
}

func TestRunCheckpointSurvivesFatalAbort(t *testing.T) {
	t.Parallel()

	// first two batches succeed, the third call fails like a dead endpoint
	client := &echoClient{fatalFrom: 3, fatalErr: errors.New("connection refused")}
	driver, cfg := testDriver(t, client, 10)

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrRemote))
	assert.Equal(t, 3, client.calls)

	// no final output
	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))

	// checkpoint holds exactly the first two committed batches
	checkpoint, readErr := subtitle.NewReader().Read(cfg.OutputPath + CheckpointSuffix)
	require.NoError(t, readErr)
	require.Len(t, checkpoint.Entries, 8)
	for i, entry := range checkpoint.Entries {
		assert.Equal(t, i+1, entry.Index)
		assert.True(t, strings.HasPrefix(entry.Text, "T:"))
	}
}

func TestRunFatalOnFirstCallLeavesNothing(t *testing.T) {
	t.Parallel()

	client := &echoClient{fatalFrom: 1, fatalErr: errors.New("401 unauthorized")}
	driver, cfg := testDriver(t, client, 10)

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrRemote))
	assert.Equal(t, 1, client.calls)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.OutputPath + CheckpointSuffix)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMalformedBatchFallsBackAndContinues(t *testing.T) {
	t.Parallel()

	// a client that never produces a valid answer: every batch degrades to
	// the untranslated originals but the run still finishes
	client := &badClient{}
	driver, cfg := testDriver(t, client, 6)

	require.NoError(t, driver.Run(context.Background()))
	// 2 batches, 3 attempts each
	assert.Equal(t, 6, client.calls)

	result, err := subtitle.NewReader().Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, result.Entries, 6)
	for i, entry := range result.Entries {
		assert.Equal(t, fmt.Sprintf("This is subtitle line number %d.", i+1), entry.Text)
	}
}

type badClient struct{ calls int }

func (c *badClient) Complete(context.Context, string) (string, error) {
	c.calls++
	return "not a valid answer", nil
}

func TestRunRefusesExistingOutput(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	driver, cfg := testDriver(t, client, 4)
	require.NoError(t, os.WriteFile(cfg.OutputPath, []byte("existing"), 0o644))

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrConfig))
	assert.Zero(t, client.calls)
}

func TestRunMissingInput(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	driver, cfg := testDriver(t, client, 4)
	require.NoError(t, os.Remove(cfg.SubtitlePath))

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrConfig))
	assert.Zero(t, client.calls)
}

func TestRunCancelledContextKeepsCheckpoint(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	client := &cancellingClient{cancel: cancel, after: 1}
	driver, cfg := testDriver(t, client, 10)

	err := driver.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	// interruption is not an endpoint fault
	assert.False(t, IsType(err, ErrRemote))

	// the batch committed before cancellation remains a loadable checkpoint
	checkpoint, readErr := subtitle.NewReader().Read(cfg.OutputPath + CheckpointSuffix)
	require.NoError(t, readErr)
	assert.Len(t, checkpoint.Entries, 4)
}

// cancellingClient behaves like echoClient but cancels the run context after
// a given number of completed calls.
type cancellingClient struct {
	echo   echoClient
	cancel context.CancelFunc
	after  int
}

func (c *cancellingClient) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.echo.Complete(ctx, prompt)
	if c.echo.calls >= c.after {
		c.cancel()
	}
	return response, err
}

// stub prober and chooser for the video source path

type stubProber struct {
	streams  []media.StreamDescriptor
	srt      string
	dir      string
	extracts int
}

func (p *stubProber) ListStreams(string) ([]media.StreamDescriptor, error) {
	return p.streams, nil
}

func (p *stubProber) ExtractStream(_ string, streamIndex int) (string, error) {
	p.extracts++
	path := filepath.Join(p.dir, fmt.Sprintf("scratch-%d.srt", streamIndex))
	return path, os.WriteFile(path, []byte(p.srt), 0o644)
}

type recordingChooser struct {
	called bool
}

func (c *recordingChooser) Choose(context.Context, []media.StreamDescriptor) (int, error) {
	c.called = true
	return 0, nil
}

func TestRunVideoSourceExtractsAndCleansUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake container"), 0o644))

	prober := &stubProber{
		streams: []media.StreamDescriptor{{Index: 2, Codec: "subrip", Language: "eng"}},
		srt:     sampleSRT(4),
		dir:     dir,
	}

	cfg := config.Config{
		VideoPath:      videoPath,
		OutputPath:     filepath.Join(dir, "out.srt"),
		TargetLanguage: "German",
		WindowSize:     4,
		Model:          "test-model",
		BaseURL:        "https://api.example.com/v1",
		APIKey:         "key",
		Timeout:        5,
	}

	logger := quietLogger()
	client := &echoClient{}
	driver := NewDriver(cfg, logger, translate.NewOrchestrator(client, logger),
		subtitle.NewReader(), subtitle.NewWriter(), prober, nil)

	require.NoError(t, driver.Run(context.Background()))

	result, err := subtitle.NewReader().Read(cfg.OutputPath)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 4)

	// extraction scratch file removed at run end
	_, statErr := os.Stat(filepath.Join(dir, "scratch-2.srt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunInterruptedBeforeStreamSelection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake container"), 0o644))

	prober := &stubProber{
		streams: []media.StreamDescriptor{
			{Index: 2, Codec: "subrip", Language: "eng"},
			{Index: 3, Codec: "subrip", Language: "ger"},
		},
		srt: sampleSRT(6),
		dir: dir,
	}
	chooser := &recordingChooser{}

	cfg := config.Config{
		VideoPath:      videoPath,
		OutputPath:     filepath.Join(dir, "out.srt"),
		TargetLanguage: "German",
		WindowSize:     4,
		Model:          "test-model",
		BaseURL:        "https://api.example.com/v1",
		APIKey:         "key",
		Timeout:        5,
	}

	logger := quietLogger()
	client := &echoClient{}
	driver := NewDriver(cfg, logger, translate.NewOrchestrator(client, logger),
		subtitle.NewReader(), subtitle.NewWriter(), prober, chooser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsType(err, ErrSource))

	// neither previews nor the operator prompt once interrupted
	assert.Zero(t, prober.extracts)
	assert.False(t, chooser.called)
	assert.Zero(t, client.calls)
}

func TestRunRemovesStaleStageFile(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	driver, cfg := testDriver(t, client, 4)

	// leftover from a run that died mid-rewrite
	stale := cfg.OutputPath + CheckpointSuffix + stageSuffix
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))

	require.NoError(t, driver.Run(context.Background()))

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
	result, err := subtitle.NewReader().Read(cfg.OutputPath)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 4)
}

// failingWriter delegates to a real writer until the nth write, which fails.
type failingWriter struct {
	inner  subtitle.Writer
	writes int
	failOn int
}

func (w *failingWriter) Write(path string, file *subtitle.File) error {
	w.writes++
	if w.writes == w.failOn {
		return errors.New("disk full")
	}
	return w.inner.Write(path, file)
}

func persistenceDriver(t *testing.T, client translate.CompletionClient, writer subtitle.Writer, entries int) (*Driver, config.Config) {
	t.Helper()
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "in.srt")
	require.NoError(t, os.WriteFile(inputPath, []byte(sampleSRT(entries)), 0o644))

	cfg := config.Config{
		SubtitlePath:   inputPath,
		OutputPath:     filepath.Join(dir, "out.srt"),
		TargetLanguage: "German",
		WindowSize:     4,
		Model:          "test-model",
		BaseURL:        "https://api.example.com/v1",
		APIKey:         "key",
		Timeout:        5,
	}

	logger := quietLogger()
	driver := NewDriver(cfg, logger, translate.NewOrchestrator(client, logger),
		subtitle.NewReader(), writer, nil, nil)
	return driver, cfg
}

func TestRunFirstCheckpointWriteFailure(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	writer := &failingWriter{inner: subtitle.NewWriter(), failOn: 1}
	driver, cfg := persistenceDriver(t, client, writer, 10)

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrPersistence))

	// nothing committed anywhere
	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.OutputPath + CheckpointSuffix)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.OutputPath + CheckpointSuffix + stageSuffix)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunLaterCheckpointWriteFailureKeepsPriorCheckpoint(t *testing.T) {
	t.Parallel()

	client := &echoClient{}
	writer := &failingWriter{inner: subtitle.NewWriter(), failOn: 2}
	driver, cfg := persistenceDriver(t, client, writer, 10)

	err := driver.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsType(err, ErrPersistence))

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))

	// the first committed checkpoint is untouched by the failed rewrite
	checkpoint, readErr := subtitle.NewReader().Read(cfg.OutputPath + CheckpointSuffix)
	require.NoError(t, readErr)
	require.Len(t, checkpoint.Entries, 4)
	for i, entry := range checkpoint.Entries {
		assert.Equal(t, i+1, entry.Index)
		assert.True(t, strings.HasPrefix(entry.Text, "T:"))
	}
}
