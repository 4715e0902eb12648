package aibom

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "AIBOM:", PrefixColor: ui.FgBlue}

// SetLogger sets an optional destination for AIBOM logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(modelID string, format string, args ...any) {
	logger.Logf(modelID, format, args...)
}
