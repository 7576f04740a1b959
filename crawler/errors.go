package crawler

import (
	"errors"
	"fmt"
)

// ErrDiscovery marks a run that could not start because the landing page
// was unreachable. No report is produced for such a run.
var ErrDiscovery = errors.New("navigation discovery failed")

// DiscoveryError describes why the landing page could not be loaded.
type DiscoveryError struct {
	URL        string
	StatusCode int   // set when the server answered with a failure status
	Err        error // set when the request itself failed
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load base page: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to load base page: %s: status %d", e.URL, e.StatusCode)
}

// Unwrap returns the underlying transport error, if any.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDiscovery) match any DiscoveryError.
func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }
