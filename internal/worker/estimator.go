package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricedeck/internal/store"
	"pricedeck/pkg/api"
)

// Result is the outcome of one successful pricing run.
type Result struct {
	Summary  json.RawMessage
	Calendar json.RawMessage
	Meta     json.RawMessage
	// UpdatedAttributes is set by url-mode runs: the attributes scraped
	// from the listing page, to be merged back into the report input.
	UpdatedAttributes *api.ListingAttributes
}

// Processor turns a claimed report into a pricing result.
type Processor interface {
	Process(ctx context.Context, r *store.Report) (*Result, error)
}

// EstimatorProcessor calls the pricing estimator service, which owns
// comparable-listing search, scraping and the pricing model. The agent
// stays a thin pipeline around it.
type EstimatorProcessor struct {
	url        string
	httpClient *http.Client
}

// NewEstimatorProcessor creates a processor against the estimator at url.
func NewEstimatorProcessor(url string) *EstimatorProcessor {
	return &EstimatorProcessor{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

type estimateRequest struct {
	Address        string                `json:"address"`
	Attributes     api.ListingAttributes `json:"attributes"`
	StartDate      string                `json:"startDate"`
	EndDate        string                `json:"endDate"`
	DiscountPolicy api.DiscountPolicy    `json:"discountPolicy"`
}

type estimateResponse struct {
	Summary           json.RawMessage        `json:"summary"`
	Calendar          json.RawMessage        `json:"calendar"`
	Meta              json.RawMessage        `json:"meta"`
	UpdatedAttributes *api.ListingAttributes `json:"updatedAttributes"`
	Error             string                 `json:"error"`
}

// Process submits the report input to the estimator and maps its
// response. A non-2xx status or an estimator-reported error is a run
// failure; retry policy stays with the caller.
func (p *EstimatorProcessor) Process(ctx context.Context, r *store.Report) (*Result, error) {
	body, err := json.Marshal(estimateRequest{
		Address:        r.Address,
		Attributes:     r.Attributes,
		StartDate:      r.DateStart.Format("2006-01-02"),
		EndDate:        r.DateEnd.Format("2006-01-02"),
		DiscountPolicy: r.DiscountPolicy,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("estimator unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading estimator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("estimator returned status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var er estimateResponse
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, fmt.Errorf("invalid estimator response: %w", err)
	}
	if er.Error != "" {
		return nil, fmt.Errorf("estimator error: %s", er.Error)
	}
	if len(er.Summary) == 0 || len(er.Calendar) == 0 {
		return nil, fmt.Errorf("estimator response missing summary or calendar")
	}

	return &Result{
		Summary:           er.Summary,
		Calendar:          er.Calendar,
		Meta:              er.Meta,
		UpdatedAttributes: er.UpdatedAttributes,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
