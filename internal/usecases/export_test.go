package usecases

import "time"

// SetNow swaps the usecase clock and returns a func restoring it.
func SetNow(fn func() time.Time) func() {
	prev := nowFunc
	nowFunc = fn
	return func() { nowFunc = prev }
}
