package store

import (
	"fmt"
	"time"

	"github.com/MrEthical07/authflow"
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", authflow.ErrRecordNotFound, what)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}
