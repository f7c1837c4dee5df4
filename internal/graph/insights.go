package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// ViewsMetric is the lifetime unique-impressions metric shown as "views".
	ViewsMetric = "post_impressions_unique"

	maxBatchSize = 50
)

// PageMetrics are fetched for the home dashboard.
var PageMetrics = []string{"page_impressions_unique", "page_post_engagements"}

// Insight is the latest value of one page metric.
type Insight struct {
	Name    string
	Title   string
	Period  string
	Value   int64
	EndTime string
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Title  string `json:"title"`
		Period string `json:"period"`
		Values []struct {
			Value   json.RawMessage `json:"value"`
			EndTime string          `json:"end_time"`
		} `json:"values"`
	} `json:"data"`
}

type batchRequest struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
}

type batchResponse struct {
	Code int    `json:"code"`
	Body string `json:"body"`
}

// PostViews fetches ViewsMetric for each post id using batch requests.
// Posts whose insight could not be read are absent from the result.
func (c *Client) PostViews(ctx context.Context, token string, postIDs []string) (map[string]int64, error) {
	views := make(map[string]int64, len(postIDs))
	for start := 0; start < len(postIDs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(postIDs))
		if err := c.postViewsBatch(ctx, token, postIDs[start:end], views); err != nil {
			return nil, err
		}
	}
	return views, nil
}

func (c *Client) postViewsBatch(ctx context.Context, token string, ids []string, views map[string]int64) error {
	reqs := make([]batchRequest, len(ids))
	for i, id := range ids {
		reqs[i] = batchRequest{
			Method:      "GET",
			RelativeURL: c.version + "/" + url.PathEscape(id) + "/insights/" + ViewsMetric,
		}
	}
	batch, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	form := url.Values{}
	form.Set("batch", string(batch))
	form.Set("include_headers", "false")

	// Entries may be null when Graph times out an individual request.
	var resp []*batchResponse
	if err := c.postForm(ctx, "post_views", c.baseURL+"/", token, form, &resp); err != nil {
		return err
	}

	for i, item := range resp {
		if i >= len(ids) || item == nil || item.Code != 200 {
			continue
		}
		var ins insightsResponse
		if err := json.Unmarshal([]byte(item.Body), &ins); err != nil {
			continue
		}
		if v, ok := latestValue(ins, ViewsMetric); ok {
			views[ids[i]] = v
		}
	}
	return nil
}

// PageInsights returns the most recent daily value of each PageMetrics entry.
func (c *Client) PageInsights(ctx context.Context, token, pageID string) ([]Insight, error) {
	q := url.Values{}
	q.Set("metric", strings.Join(PageMetrics, ","))
	q.Set("period", "day")

	var resp insightsResponse
	if err := c.get(ctx, "page_insights", c.endpoint(url.PathEscape(pageID)+"/insights", q), token, &resp); err != nil {
		return nil, err
	}

	insights := make([]Insight, 0, len(resp.Data))
	for _, d := range resp.Data {
		if len(d.Values) == 0 {
			continue
		}
		last := d.Values[len(d.Values)-1]
		v, ok := parseValue(last.Value)
		if !ok {
			continue
		}
		insights = append(insights, Insight{
			Name:    d.Name,
			Title:   d.Title,
			Period:  d.Period,
			Value:   v,
			EndTime: last.EndTime,
		})
	}
	return insights, nil
}

func latestValue(ins insightsResponse, metric string) (int64, bool) {
	for _, d := range ins.Data {
		if d.Name != metric || len(d.Values) == 0 {
			continue
		}
		return parseValue(d.Values[len(d.Values)-1].Value)
	}
	return 0, false
}

// parseValue reads a numeric insight value. Breakdown objects are not numbers
// and are rejected.
func parseValue(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}
