package ccrt

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-wide logger every ccrt component writes through. It
// defaults to a silent logger (level Disabled) so that embedding this
// library never produces unsolicited output; callers wire in their own
// sink with SetLogger the way the teacher's detector package lets callers
// swap in whichever *zerolog.Logger fits their service.
var Log zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)

// SetLogger replaces the package-wide logger. Exported through package
// cc's config.go as an Options field.
func SetLogger(l zerolog.Logger) {
	Log = l
}
