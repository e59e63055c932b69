package race

import (
	"RC/configs"
	"runtime"
	"time"
)

// RunForDesiredTime calls fn, then waits until length has elapsed since
// start, within configs.TimePrecision. A zero start means now. The wait
// sleeps until the last configs.SpinWindow and spins from there, so it does
// not overshoot by a timer tick. When fn fails its error is returned at
// once, without padding; callers that must still consume the window pad
// again themselves.
func RunForDesiredTime(length time.Duration, fn func() error, start time.Time) error {
	if start.IsZero() {
		start = time.Now()
	}
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}
	for {
		remaining := length - time.Since(start)
		if remaining < configs.TimePrecision {
			return nil
		}
		if remaining > configs.SpinWindow {
			time.Sleep(remaining - configs.SpinWindow)
		} else {
			runtime.Gosched()
		}
	}
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}
