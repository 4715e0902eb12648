package model

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Model:", PrefixColor: ui.FgCyan}

// SetLogger sets an optional destination for model logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(modelID string, format string, args ...any) {
	logger.Logf(modelID, format, args...)
}
