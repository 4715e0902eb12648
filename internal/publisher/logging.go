package publisher

import (
	"io"

	"github.com/idlab-discover/emotune-cli/internal/logging"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Publish:", PrefixColor: ui.FgMagenta, Field: "repo"}

// SetLogger sets an optional destination for publisher logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(repoID string, format string, args ...any) {
	logger.Logf(repoID, format, args...)
}
