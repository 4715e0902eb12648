package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// RowsPage is the decoded reply of the datasets-server /rows endpoint.
type RowsPage struct {
	Rows []struct {
		RowIdx int             `json:"row_idx"`
		Row    json.RawMessage `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// DatasetRows fetches one page of rows of a dataset split.
func (c *Client) DatasetRows(ctx context.Context, dataset, config, split string, offset, length int) (*RowsPage, error) {
	q := url.Values{}
	q.Set("dataset", dataset)
	q.Set("config", config)
	q.Set("split", split)
	q.Set("offset", fmt.Sprint(offset))
	q.Set("length", fmt.Sprint(length))

	var page RowsPage
	if err := c.doJSON(ctx, "GET", c.datasetsURL()+"/rows?"+q.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("dataset rows %s/%s [%d:%d]: %w", dataset, split, offset, offset+length, err)
	}
	return &page, nil
}
