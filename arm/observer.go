package arm

import "github.com/sirupsen/logrus"

// ProgressObserver receives a once-per-second countdown while the client
// waits out a throttling cooldown. This is an observability contract only;
// implementations must not block.
type ProgressObserver interface {
	Throttled(secondsRemaining int)
}

type noopObserver struct{}

func (noopObserver) Throttled(int) {}

// LogObserver reports the countdown through the run's logger.
type LogObserver struct {
	Logger *logrus.Logger
}

func NewLogObserver(logger *logrus.Logger) *LogObserver {
	return &LogObserver{Logger: logger}
}

func (observer *LogObserver) Throttled(secondsRemaining int) {
	observer.Logger.Infof("Throttled for %ds. Be patient ...", secondsRemaining)
}
