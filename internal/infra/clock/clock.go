package clock

import (
	"time"

	"bizzshort/internal/usecase"
)

// Scheduler runs callbacks on the runtime timer heap.
type Scheduler struct{}

func New() Scheduler {
	return Scheduler{}
}

func (Scheduler) AfterFunc(delay time.Duration, fn func()) usecase.Timer {
	return time.AfterFunc(delay, fn)
}

var _ usecase.Scheduler = Scheduler{}
