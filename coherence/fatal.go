package coherence

import (
	"log"

	"github.com/tebeka/atexit"
)

// ExitReporter terminates the process on the first violation. Functions
// registered with atexit, such as trace flushers, still run.
type ExitReporter struct {
	Logger *log.Logger
}

// Fatal logs err and exits with status 1.
func (r ExitReporter) Fatal(err error) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	logger.Printf("coherence violation: %v", err)
	atexit.Exit(1)
}
