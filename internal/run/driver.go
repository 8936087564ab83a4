package run

import (
	"context"
	"errors"
	"os"

	"github.com/halvora/srtrans/internal/config"
	"github.com/halvora/srtrans/internal/media"
	"github.com/halvora/srtrans/internal/subtitle"
	"github.com/halvora/srtrans/internal/translate"
	"github.com/halvora/srtrans/pkg/log"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// CheckpointSuffix is appended to the output path for the in-progress
// checkpoint file.
const CheckpointSuffix = ".tmp"

// stageSuffix is appended to the checkpoint path while a rewrite is staged;
// the stage file is renamed over the checkpoint once fully written.
const stageSuffix = ".stage"

// Driver sequences a whole translation run: source resolution, windowing,
// per-batch orchestration, incremental checkpointing, and atomic finalize.
type Driver struct {
	cfg     config.Config
	log     *log.Logger
	orch    *translate.Orchestrator
	reader  subtitle.Reader
	writer  subtitle.Writer
	prober  media.Prober
	chooser media.Chooser
}

func NewDriver(
	cfg config.Config,
	logger *log.Logger,
	orch *translate.Orchestrator,
	reader subtitle.Reader,
	writer subtitle.Writer,
	prober media.Prober,
	chooser media.Chooser,
) *Driver {
	return &Driver{
		cfg:     cfg,
		log:     logger,
		orch:    orch,
		reader:  reader,
		writer:  writer,
		prober:  prober,
		chooser: chooser,
	}
}

// Run executes the full translation. Batch-local format failures have
// already been absorbed by the orchestrator; any error returned here is
// fatal. An in-progress checkpoint at <output>.tmp survives fatal remote and
// interruption failures as a recovery point.
func (d *Driver) Run(ctx context.Context) error {
	outputPath := d.cfg.OutputPath
	if _, err := os.Stat(outputPath); err == nil {
		return NewError(ErrConfig, "output file already exists, refusing to overwrite").
			WithContext("path", outputPath)
	}
	if _, err := os.Stat(d.cfg.InputPath()); os.IsNotExist(err) {
		return NewError(ErrConfig, "input file does not exist").
			WithContext("path", d.cfg.InputPath())
	}

	sourcePath, cleanup, err := d.resolveSource(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	file, err := d.reader.Read(sourcePath)
	if err != nil {
		return WrapError(err, ErrSource, "failed to read subtitle source").
			WithContext("path", sourcePath)
	}
	if len(file.Entries) == 0 {
		return NewError(ErrSource, "subtitle source contains no entries").
			WithContext("path", sourcePath)
	}

	sourceLang := languageName(file.Language)
	d.log.Info("loaded %d subtitle entries from %s", len(file.Entries), sourcePath)
	if sourceLang != "" {
		d.log.Info("detected source language: %s", sourceLang)
	}
	d.log.Info("window size: %d, model: %s, output: %s", d.cfg.WindowSize, d.cfg.Model, outputPath)
	if d.cfg.Context != "" {
		d.log.Info("context: %s", d.cfg.Context)
	}

	batches, err := translate.Window(file.Entries, d.cfg.WindowSize)
	if err != nil {
		return WrapError(err, ErrConfig, "invalid window size")
	}

	tmpPath := outputPath + CheckpointSuffix
	// a crash during a previous run can leave a stale stage file behind;
	// only the .tmp checkpoint itself is meaningful
	os.Remove(tmpPath + stageSuffix)
	translated := make([]subtitle.Entry, 0, len(file.Entries))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			d.log.Warn("run interrupted after %d/%d batches, checkpoint kept at %s", i, len(batches), tmpPath)
			return err
		}

		result, err := d.orch.TranslateBatch(ctx, batch, d.cfg.Context, sourceLang, d.cfg.TargetLanguage)
		if err != nil {
			return WrapError(err, ErrRemote, "completion endpoint failed").
				WithContext("batch", i+1).
				WithContext("endpoint", d.cfg.BaseURL)
		}

		translated = append(translated, result...)
		if err := d.checkpoint(tmpPath, file, translated); err != nil {
			return err
		}
		d.log.Info("batch %d/%d done, checkpointed %d/%d entries", i+1, len(batches), len(translated), len(file.Entries))
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return WrapError(err, ErrPersistence, "failed to finalize output").
			WithContext("from", tmpPath).
			WithContext("to", outputPath)
	}

	d.log.Info("wrote %d translated entries to %s", len(translated), outputPath)
	return nil
}

// resolveSource returns the subtitle file to translate. For a video input
// the chosen stream is extracted to a scratch file; the returned cleanup
// removes it. Cleanup is a no-op for a direct subtitle input.
func (d *Driver) resolveSource(ctx context.Context) (string, func(), error) {
	noop := func() {}

	if d.cfg.VideoPath == "" {
		return d.cfg.SubtitlePath, noop, nil
	}

	stream, err := media.SelectStream(ctx, d.prober, d.reader, d.chooser, d.log, d.cfg.VideoPath)
	if err != nil {
		// interruption is not a source fault, surface it as-is
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", noop, err
		}
		return "", noop, WrapError(err, ErrSource, "subtitle stream selection failed").
			WithContext("path", d.cfg.VideoPath)
	}

	scratch, err := d.prober.ExtractStream(d.cfg.VideoPath, stream.Index)
	if err != nil {
		return "", noop, WrapError(err, ErrSource, "subtitle stream extraction failed").
			WithContext("path", d.cfg.VideoPath).
			WithContext("stream", stream.Index)
	}

	d.log.Info("extracted subtitle stream %d (%s) to %s", stream.Index, stream.Language, scratch)
	return scratch, func() { os.Remove(scratch) }, nil
}

// checkpoint rewrites the full accumulated prefix, staging to a sibling file
// and renaming so the checkpoint path never holds a partial write.
func (d *Driver) checkpoint(tmpPath string, source *subtitle.File, translated []subtitle.Entry) error {
	stage := tmpPath + stageSuffix

	snapshot := &subtitle.File{
		Entries:  translated,
		Language: source.Language,
		Format:   source.Format,
	}
	if err := d.writer.Write(stage, snapshot); err != nil {
		os.Remove(stage)
		return WrapError(err, ErrPersistence, "failed to write checkpoint").
			WithContext("path", tmpPath)
	}
	if err := os.Rename(stage, tmpPath); err != nil {
		os.Remove(stage)
		return WrapError(err, ErrPersistence, "failed to commit checkpoint").
			WithContext("path", tmpPath)
	}
	return nil
}

// languageName renders a detected language tag for logs and the prompt
// preamble. Undetermined languages render as "".
func languageName(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return tag.String()
	}
	return name
}
