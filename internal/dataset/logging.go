package dataset

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Dataset:", PrefixColor: ui.FgGreen, Field: "dataset"}

// SetLogger sets an optional destination for dataset logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(datasetID string, format string, args ...any) {
	logger.Logf(datasetID, format, args...)
}
