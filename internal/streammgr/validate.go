package streammgr

import (
	"regexp"

	"github.com/Cantido/hematite/internal/apperror"
)

// streamIDPattern matches a safe, filesystem-friendly stream identifier:
// ASCII letters, digits, underscore, and hyphen only. This rules out path
// separators and traversal sequences so a stream ID can be used directly
// as a filename component.
var streamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

func validateStreamID(id string) error {
	if !streamIDPattern.MatchString(id) {
		return apperror.New(apperror.InvalidStreamID, "stream id %q must match %s", id, streamIDPattern.String())
	}
	return nil
}
