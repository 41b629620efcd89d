package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"muscat-water/internal/model"
)

// maxAirtablePages bounds pagination against a server that keeps returning
// an offset.
const maxAirtablePages = 500

// AirtableRecord is one row as returned by the Airtable REST API.
type AirtableRecord struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// AirtableResponse is one page of records.
type AirtableResponse struct {
	Records []AirtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// AirtableClient reads tables through the Airtable REST API.
type AirtableClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewAirtableClient creates a client. If baseURL is empty it defaults to
// "https://api.airtable.com".
func NewAirtableClient(apiKey, baseURL string) *AirtableClient {
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
	}
	return &AirtableClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListParams selects the table and view to read.
type ListParams struct {
	BaseID   string
	Table    string
	View     string // optional
	PageSize int    // optional, Airtable caps it at 100
}

// AirtableError is an error reported by the Airtable API.
type AirtableError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string // for rate limit errors
}

func (e *AirtableError) Error() string {
	return e.Message
}

// ListRecords fetches every record of a table, following the offset cursor
// until the last page.
func (c *AirtableClient) ListRecords(ctx context.Context, params ListParams) ([]AirtableRecord, error) {
	if err := c.validateAPIKey(); err != nil {
		return nil, err
	}
	if params.BaseID == "" {
		return nil, fmt.Errorf("base_id is required")
	}
	if params.Table == "" {
		return nil, fmt.Errorf("table is required")
	}

	var all []AirtableRecord
	offset := ""
	for page := 0; page < maxAirtablePages; page++ {
		resp, err := c.listPage(ctx, params, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Records...)
		if resp.Offset == "" {
			log.Printf("[Airtable] Success: Received %d records in %d page(s) (base=%s, table=%s)",
				len(all), page+1, params.BaseID, params.Table)
			return all, nil
		}
		offset = resp.Offset
	}
	return nil, fmt.Errorf("airtable pagination exceeded %d pages (table=%s)", maxAirtablePages, params.Table)
}

func (c *AirtableClient) listPage(ctx context.Context, params ListParams, offset string) (*AirtableResponse, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v0/%s/%s", c.BaseURL, url.PathEscape(params.BaseID), url.PathEscape(params.Table)))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	if params.View != "" {
		q.Set("view", params.View)
	}
	if params.PageSize > 0 {
		q.Set("pageSize", fmt.Sprint(params.PageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	u.RawQuery = q.Encode()

	log.Printf("[Airtable] Request: GET %s (base=%s, table=%s, offset=%q)", u.Path, params.BaseID, params.Table, offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Client.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Printf("[Airtable] Request failed: %v (duration: %v)", err, duration)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("[Airtable] Response: %d %s (duration: %v, table=%s)", resp.StatusCode, resp.Status, duration, params.Table)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &AirtableError{
			StatusCode: resp.StatusCode,
			Code:       "UNAUTHORIZED",
			Message:    "Unauthorized: Invalid API key",
		}
	case http.StatusForbidden:
		return nil, &AirtableError{
			StatusCode: resp.StatusCode,
			Code:       "INVALID_API_KEY",
			Message:    "Invalid API key or insufficient permissions",
		}
	case http.StatusNotFound:
		return nil, &AirtableError{
			StatusCode: resp.StatusCode,
			Code:       "TABLE_NOT_FOUND",
			Message:    fmt.Sprintf("Table %s not found in base %s", params.Table, params.BaseID),
		}
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		log.Printf("[Airtable] Error: 429 Rate Limit Exceeded - Retry after: %s (table=%s)", retryAfter, params.Table)
		return nil, &AirtableError{
			StatusCode: resp.StatusCode,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("Rate limit exceeded. Retry after: %s", retryAfter),
			RetryAfter: retryAfter,
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[Airtable] Error: %d %s: %s (table=%s)", resp.StatusCode, resp.Status, body, params.Table)
		return nil, &AirtableError{
			StatusCode: resp.StatusCode,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d: %s", resp.StatusCode, resp.Status),
		}
	}

	var page AirtableResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		log.Printf("[Airtable] Error decoding response: %v (table=%s)", err, params.Table)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

func (c *AirtableClient) validateAPIKey() error {
	if c.APIKey == "" {
		return &AirtableError{
			Code:    "MISSING_API_KEY",
			Message: "API key is required",
		}
	}
	if len(c.APIKey) < 10 {
		return &AirtableError{
			Code:    "INVALID_API_KEY_FORMAT",
			Message: "API key appears to be invalid (too short)",
		}
	}
	return nil
}

// AirtableLoader loads the meter registry from an Airtable table.
type AirtableLoader struct {
	Client *AirtableClient
	Params ListParams
}

func (l AirtableLoader) Load(ctx context.Context) ([]model.MeterRecord, error) {
	recs, err := l.Client.ListRecords(ctx, l.Params)
	if err != nil {
		return nil, err
	}
	out := make([]model.MeterRecord, 0, len(recs))
	for _, r := range recs {
		if m, ok := RecordFromFields(r.Fields); ok {
			out = append(out, m)
		}
	}
	return out, nil
}
