// Package telemetry provides the structured per-stage timing record a
// successful compile returns, plus the logger every stage uses to
// emit diagnostics.
//
// The logger is passed explicitly (as a field on Recorder; only a nil
// logger falls back to logrus's standard logger) — the same shape
// grafana-k6's command layer uses (a logrus.FieldLogger field rather
// than package-global logging), since an ambient global wouldn't
// tolerate concurrent compiles cleanly.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Stage names one phase of the pipeline.
type Stage string

const (
	StageTokenize Stage = "tokenize"
	StageParse    Stage = "parse"
	StageAnalyze  Stage = "analyze"
	StageGenerate Stage = "generate"
	StageOptimize Stage = "optimize"
	StageAssemble Stage = "assemble"
)

// StageTiming records how long one Stage took.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// Report is the aggregate returned alongside a successful compile.
type Report struct {
	Stages []StageTiming
}

// Total sums every recorded stage duration.
func (r *Report) Total() time.Duration {
	var total time.Duration
	for _, s := range r.Stages {
		total += s.Duration
	}
	return total
}

// Recorder accumulates StageTiming entries and logs stage
// entry/exit through an injected logger, the same explicit-logger-field
// convention grafana-k6's command layer uses.
type Recorder struct {
	Logger logrus.FieldLogger
	report Report
}

// NewRecorder builds a Recorder. A nil logger is replaced with
// logrus.StandardLogger(), which writes to stderr at its configured
// level (Info unless changed), so a failed stage's warning is printed.
func NewRecorder(logger logrus.FieldLogger) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{Logger: logger}
}

// Time runs fn, recording its duration under the given stage and
// logging entry/exit at debug level. If fn returns an error the stage
// is still recorded (partial timing data is useful for diagnosing where
// a compile failed) but the error propagates unchanged.
func (r *Recorder) Time(stage Stage, fn func() error) error {
	r.Logger.WithField("stage", stage).Debug("stage started")
	start := time.Now()
	err := fn()
	d := time.Since(start)
	r.report.Stages = append(r.report.Stages, StageTiming{Stage: stage, Duration: d})
	fields := r.Logger.WithField("stage", stage).WithField("duration", d)
	if err != nil {
		fields.WithField("error", err).Warn("stage failed")
	} else {
		fields.Debug("stage finished")
	}
	return err
}

// Report returns the accumulated stage timings.
func (r *Recorder) Report() Report { return r.report }
