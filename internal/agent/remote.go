package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/conversation"
)

// Remote forwards each turn to an agent service over HTTP.
type Remote struct {
	httpClient *http.Client
	url        string
	healthURL  string
	logger     *logrus.Logger
}

func NewRemote(url, healthURL string, timeout time.Duration, logger *logrus.Logger) *Remote {
	return &Remote{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		healthURL:  healthURL,
		logger:     logger,
	}
}

func (r *Remote) Name() string { return "remote" }

// Check verifies the configured health URL answers with a 2xx status. It is
// a no-op when no health URL is configured.
func (r *Remote) Check(ctx context.Context) error {
	if r.healthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.healthURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, r.healthURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrBackendUnavailable, r.healthURL, resp.StatusCode)
	}
	r.logger.WithField("url", r.healthURL).Info("remote agent is healthy")
	return nil
}

type remoteRequest struct {
	Query          string              `json:"query"`
	ConversationID string              `json:"conversation_id"`
	Step           string              `json:"step,omitempty"`
	History        []conversation.Turn `json:"history"`
	Context        map[string]any      `json:"context,omitempty"`
}

// remoteReply accepts the field names agent services commonly use.
type remoteReply struct {
	Message  string         `json:"message"`
	Response string         `json:"response"`
	Text     string         `json:"text"`
	Display  string         `json:"display"`
	Data     any            `json:"data"`
	Context  map[string]any `json:"context"`
}

func (rr remoteReply) toReply() *Reply {
	msg := rr.Message
	if msg == "" {
		msg = rr.Response
	}
	if msg == "" {
		msg = rr.Text
	}
	display := rr.Display
	if display == "" {
		display = msg
	}
	ctx := rr.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &Reply{Message: msg, Display: display, Data: rr.Data, Context: ctx}
}

func (r *Remote) Respond(ctx context.Context, req Request) (*Reply, error) {
	history := req.History
	if history == nil {
		history = []conversation.Turn{}
	}
	payload, err := json.Marshal(remoteRequest{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		Step:           req.Step,
		History:        history,
		Context:        req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
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
	return parseReply(body)
}

// parseReply reads a JSON reply object, or treats the body as plain text.
func parseReply(body []byte) (*Reply, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var rr remoteReply
		if err := json.Unmarshal([]byte(text), &rr); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return rr.toReply(), nil
	}
	return &Reply{Message: text, Display: text, Context: map[string]any{}}, nil
}
