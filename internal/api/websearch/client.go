// Package websearch answers free-text questions through Perplexity when an
// API key is configured, and through the DuckDuckGo instant-answer API
// otherwise.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ProviderPerplexity = "perplexity"
	ProviderDuckDuckGo = "duckduckgo"

	perplexityModel = "sonar"
	maxTopics       = 8
)

// Client is a web search client.
type Client struct {
	httpClient    *http.Client
	perplexityURL string
	duckDuckGoURL string
	apiKey        string
}

// NewClient creates a new web search client. An empty apiKey disables
// Perplexity.
func NewClient(perplexityURL, duckDuckGoURL, apiKey string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		perplexityURL: perplexityURL,
		duckDuckGoURL: duckDuckGoURL,
		apiKey:        apiKey,
	}
}

// Search tries Perplexity first and falls back to DuckDuckGo.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}

	var pplxErr error
	if c.apiKey != "" {
		res, err := c.perplexity(ctx, query)
		if err == nil {
			return res, nil
		}
		pplxErr = fmt.Errorf("perplexity: %w", err)
	}

	res, err := c.duckDuckGo(ctx, query)
	if err != nil {
		return nil, errors.Join(pplxErr, fmt.Errorf("duckduckgo: %w", err))
	}
	return res, nil
}

func (c *Client) perplexity(ctx context.Context, query string) (*Result, error) {
	payload, err := json.Marshal(chatRequest{
		Model:     perplexityModel,
		Messages:  []chatMessage{{Role: "user", Content: query}},
		MaxTokens: 500,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.perplexityURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &Result{
		Query:    query,
		Provider: ProviderPerplexity,
		Answer:   strings.TrimSpace(result.Choices[0].Message.Content),
	}, nil
}

func (c *Client) duckDuckGo(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.duckDuckGoURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "tripdesk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	res := &Result{
		Query:    query,
		Provider: ProviderDuckDuckGo,
		Answer:   result.AbstractText,
		Source:   result.AbstractSource,
		Topics:   flattenTopics(result.RelatedTopics, nil),
	}
	if res.Answer == "" && len(res.Topics) > 0 {
		res.Answer = res.Topics[0].Text
	}
	return res, nil
}

func flattenTopics(in []relatedTopic, out []Topic) []Topic {
	for _, t := range in {
		if len(out) >= maxTopics {
			break
		}
		if len(t.Topics) > 0 {
			out = flattenTopics(t.Topics, out)
			continue
		}
		if t.Text != "" {
			out = append(out, Topic{Text: t.Text, URL: t.FirstURL})
		}
	}
	return out
}
