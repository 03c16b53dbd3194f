package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrRunInProgress is returned when a sync is requested while one is running.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// failureError folds the per-file errors of a run into one error, or nil
// when every file succeeded.
func failureError(result *RunResult) error {
	if result.Failed == 0 {
		return nil
	}

	var merr *multierror.Error
	for _, line := range result.Errors {
		merr = multierror.Append(merr, errors.New(line))
	}
	merr.ErrorFormat = func(errs []error) string {
		lines := make([]string, len(errs))
		for i, err := range errs {
			lines[i] = err.Error()
		}
		return fmt.Sprintf("sync failed: %d file(s) failed - %s", len(errs), strings.Join(lines, "; "))
	}
	return merr
}
