package state

import (
	"time"
)

// newLocalEnv creates a new LocalEnv instance with default values. Logger
// stays nil until configuration is loaded, errors before that point go to
// stderr directly.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}
