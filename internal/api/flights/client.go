package flights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a flights search API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new flights client for the API at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Search finds flights between two airport codes. date is optional and
// passed through as given (YYYY-MM-DD).
func (c *Client) Search(ctx context.Context, source, destination, date string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("source", source)
	params.Set("destination", destination)
	if date != "" {
		params.Set("date", date)
	}
	endpoint := c.baseURL + "/api/flights?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	result := &SearchResponse{Source: source, Destination: destination, Date: date}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		result.Flights = env.Flights
	} else if err := json.Unmarshal(body, &result.Flights); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Flights == nil {
		result.Flights = []Flight{}
	}

	return result, nil
}
