package runstore

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Runs:", PrefixColor: ui.FgGreen, Field: "run"}

// SetLogger sets an optional destination for registry logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(runID string, format string, args ...any) {
	logger.Logf(runID, format, args...)
}
