package service

import (
	"time"

	"github.com/kleoslabs/kleos/internal/domain"
)

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

var _ domain.Clock = SystemClock{}
