package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricedeck/pkg/api"
)

// ReportClient handles API calls to the pricedeck controller.
type ReportClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewReportClient creates a new client with the given base URL and API key.
func NewReportClient(baseURL, apiKey string) *ReportClient {
	return &ReportClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *ReportClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.APIKey != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// SubmitReport sends POST /reports to queue a new pricing report.
func (c *ReportClient) SubmitReport(req api.SubmitReportRequest) (*api.SubmitReportResponse, error) {
	var result api.SubmitReportResponse
	if err := c.do(http.MethodPost, "/reports", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetReport sends GET /reports/{shareID} to retrieve a report by share ID.
func (c *ReportClient) GetReport(shareID string) (*api.ReportResponse, error) {
	var result api.ReportResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/reports/%s", shareID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListListings sends GET /listings to enumerate the caller's saved listings.
func (c *ReportClient) ListListings() (*api.ListListingsResponse, error) {
	var result api.ListListingsResponse
	if err := c.do(http.MethodGet, "/listings", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateListing sends POST /listings to save a reusable listing.
func (c *ReportClient) CreateListing(req api.CreateListingRequest) (*api.ListingResponse, error) {
	var result api.ListingResponse
	if err := c.do(http.MethodPost, "/listings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RerunListing sends POST /listings/{id}/rerun to queue a fresh report
// from a saved listing.
func (c *ReportClient) RerunListing(listingID string, req api.RerunListingRequest) (*api.SubmitReportResponse, error) {
	var result api.SubmitReportResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/listings/%s/rerun", listingID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
