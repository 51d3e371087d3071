package domain

import "time"

// Clock supplies the current time for staking-window comparisons. The engine
// never reads the wall clock directly so tests can pin time.
type Clock interface {
	Now() time.Time
}
