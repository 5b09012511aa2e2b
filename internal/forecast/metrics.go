package forecast

import "time"

// Recorder receives pipeline measurements. *metrics.Recorder implements it.
type Recorder interface {
	RecordGate(state string)
	RecordRefresh(outcome string)
	RecordProviderFailure(channel string)
	ObserveStage(stage string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordGate(string)                  {}
func (nopRecorder) RecordRefresh(string)               {}
func (nopRecorder) RecordProviderFailure(string)       {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
