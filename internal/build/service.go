// Package build runs one complete publishing run: load the site
// configuration, build the site tree, render it and publish the output.
// All execution paths (CLI, daemon, tests) route through Service.
package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/scampish/internal/config"
)

// Service is the canonical interface for executing publishing runs.
type Service interface {
	// Run executes build_tree, render and commit in order. The returned
	// Result is non-nil even when err is set.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerWatch     Trigger = "watch"
)

// Request contains the inputs of one run.
type Request struct {
	Input   config.RunInput
	Trigger Trigger
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Status     Status
	DestBucket string
	Pages      int
	Assets     int

	// FailedStage names the stage that produced the terminal error.
	FailedStage string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsSuccess reports whether the run published its output.
func (s Status) IsSuccess() bool { return s == StatusSuccess }
