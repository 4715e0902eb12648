package dataset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/idlab-discover/emotune-cli/internal/hub"
)

// Defaults for the emotion dataset on the hub.
const (
	DefaultDatasetID = "emotion"
	DefaultConfig    = "split"
	DefaultPageSize  = 100
)

// RowFetcher is the datasets-server call HubLoader needs.
type RowFetcher interface {
	DatasetRows(ctx context.Context, dataset, config, split string, offset, length int) (*hub.RowsPage, error)
}

// HubLoader pages through the datasets-server rows API.
type HubLoader struct {
	Client    RowFetcher
	DatasetID string
	Config    string
	PageSize  int
	// Limit caps rows per split; 0 loads everything.
	Limit int
}

// NewHubLoader returns a loader for the default emotion dataset.
func NewHubLoader(c RowFetcher) *HubLoader {
	return &HubLoader{Client: c, DatasetID: DefaultDatasetID, Config: DefaultConfig, PageSize: DefaultPageSize}
}

// Load fetches the requested splits (DefaultSplits when none are given).
func (l *HubLoader) Load(ctx context.Context, splits ...string) (DatasetDict, error) {
	if len(splits) == 0 {
		splits = DefaultSplits
	}
	id := l.DatasetID
	if id == "" {
		id = DefaultDatasetID
	}
	cfg := l.Config
	if cfg == "" {
		cfg = DefaultConfig
	}
	pageSize := l.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	out := DatasetDict{}
	for _, name := range splits {
		var split Split
		for offset := 0; ; {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			length := pageSize
			if l.Limit > 0 && l.Limit-offset < length {
				length = l.Limit - offset
			}
			page, err := l.Client.DatasetRows(ctx, id, cfg, name, offset, length)
			if err != nil {
				return nil, err
			}
			for _, r := range page.Rows {
				var row rawRow
				if err := json.Unmarshal(r.Row, &row); err != nil {
					return nil, fmt.Errorf("split %s row %d: %w", name, r.RowIdx, err)
				}
				ex, err := row.example()
				if err != nil {
					return nil, fmt.Errorf("split %s row %d: %w", name, r.RowIdx, err)
				}
				split = append(split, ex)
			}
			offset += len(page.Rows)
			logf(id, "%s: %d/%d rows", name, offset, page.NumRowsTotal)
			if len(page.Rows) == 0 || offset >= page.NumRowsTotal || (l.Limit > 0 && offset >= l.Limit) {
				break
			}
		}
		out[name] = split
	}
	return out, nil
}
