package hub

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Hub:", PrefixColor: ui.FgMagenta, Field: "repo"}

// SetLogger sets an optional destination for hub logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(repoID string, format string, args ...any) {
	logger.Logf(repoID, format, args...)
}
