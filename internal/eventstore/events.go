package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// RunStarted is recorded before the site tree is built.
type RunStarted struct {
	SourceBucket string `json:"source_bucket"`
	Target       string `json:"target"`
	DestBucket   string `json:"dest_bucket"`
	Atomic       bool   `json:"atomic"`
}

// PagePublished is recorded for every rendered page.
type PagePublished struct {
	SourceKey   string `json:"source_key"`
	DestKey     string `json:"dest_key"`
	URL         string `json:"url"`
	Layout      string `json:"layout"`
	Fingerprint string `json:"fingerprint"`
	Bytes       int    `json:"bytes"`
}

// AssetCopied is recorded for every raw file copied verbatim.
type AssetCopied struct {
	SourceKey string `json:"source_key"`
	DestKey   string `json:"dest_key"`
}

// RunCompleted is recorded once the output is published.
type RunCompleted struct {
	Pages      int   `json:"pages"`
	Assets     int   `json:"assets"`
	DurationMS int64 `json:"duration_ms"`
}

// RunFailed carries the single terminal failure reason of a run.
type RunFailed struct {
	Stage      string `json:"stage"`
	Category   string `json:"category"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

// Record marshals payload and appends it under eventType.
func Record(ctx context.Context, s Store, runID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.LedgerError("failed to marshal event payload").
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("type", eventType).
			Build()
	}
	return s.Append(ctx, runID, eventType, data, nil)
}

// Decode unmarshals the payload of e into out.
func Decode(e Event, out any) error {
	if err := json.Unmarshal(e.Payload(), out); err != nil {
		return errors.LedgerError("failed to unmarshal event payload").
			WithCause(err).
			WithContext("run_id", e.RunID()).
			WithContext("type", e.Type()).
			Build()
	}
	return nil
}

func millis(d time.Duration) int64 { return d.Milliseconds() }

// NewRunCompleted builds a RunCompleted payload.
func NewRunCompleted(pages, assets int, d time.Duration) RunCompleted {
	return RunCompleted{Pages: pages, Assets: assets, DurationMS: millis(d)}
}

// NewRunFailed builds a RunFailed payload.
func NewRunFailed(stage string, err error, d time.Duration) RunFailed {
	return RunFailed{
		Stage:      stage,
		Category:   string(errors.GetCategory(err)),
		Error:      err.Error(),
		DurationMS: millis(d),
	}
}
