package translate

import (
	"context"
	"errors"

	"github.com/halvora/srtrans/internal/subtitle"
	"github.com/halvora/srtrans/pkg/log"
)

// maxAttempts is the total attempt ceiling per batch, including the initial
// call.
const maxAttempts = 3

// CompletionClient is the remote completion endpoint as seen by the
// orchestrator. Errors returned by Complete indicate misconfiguration
// (endpoint, credentials, model) and are never retried.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Orchestrator drives one batch through completion call, validation, retry
// with corrective feedback, and per-batch fallback.
type Orchestrator struct {
	client CompletionClient
	log    *log.Logger
}

func NewOrchestrator(client CompletionClient, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		log:    logger,
	}
}

// TranslateBatch translates one batch and returns new entries carrying the
// original index and timestamps with translated text.
//
// A validation failure consumes retry budget: the prompt is rebuilt with a
// diagnostic suffix and resent, up to maxAttempts total calls. When the
// budget is exhausted the original, untranslated entries are returned and the
// error is absorbed so the run can continue. Any error from the completion
// client itself is fatal and returned unchanged.
func (o *Orchestrator) TranslateBatch(
	ctx context.Context,
	batch []subtitle.Entry,
	contextNote string,
	sourceLang string,
	targetLang string,
) ([]subtitle.Entry, error) {
	var priorErrors []string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := BuildPrompt(batch, contextNote, sourceLang, targetLang, priorErrors)

		response, err := o.client.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}

		texts, err := Validate(response, len(batch))
		if err != nil {
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				return nil, err
			}
			o.log.Warn("batch validation failed on attempt %d/%d: %v", attempt, maxAttempts, err)
			priorErrors = append(priorErrors, formatErr.Reason)
			continue
		}

		translated := make([]subtitle.Entry, len(batch))
		for i, entry := range batch {
			translated[i] = entry.WithText(texts[i])
		}
		return translated, nil
	}

	o.log.Error("batch of %d entries failed validation after %d attempts, keeping original text", len(batch), maxAttempts)

	fallback := make([]subtitle.Entry, len(batch))
	copy(fallback, batch)
	return fallback, nil
}
