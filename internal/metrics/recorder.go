package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// PageResult is the outcome of one page upload.
type PageResult string

const (
	PageUploaded PageResult = "uploaded" // accepted by the platform
	PageRejected PageResult = "rejected" // non-zero errcode
	PageFailed   PageResult = "failed"   // transport or HTTP failure
)

// RunOutcome is the final status of a deployment run.
type RunOutcome string

const (
	RunSuccess  RunOutcome = "success"
	RunRejected RunOutcome = "rejected"
	RunFailed   RunOutcome = "failed"
	RunDryRun   RunOutcome = "dry_run"
)

// Recorder defines observability hooks for deployment runs.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome RunOutcome)
	IncPageResult(result PageResult)
	SetUploadConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(RunOutcome)                   {}
func (NoopRecorder) IncPageResult(PageResult)                   {}
func (NoopRecorder) SetUploadConcurrency(int)                   {}
