// Package conversation keeps per-conversation message history and context
// for the gateway. Conversations are created on first reference and expire
// after a configurable idle time.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/config"
)

var ErrNotFound = errors.New("conversation not found")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string         `json:"conversation_id"`
	History   []Turn         `json:"history"`
	Context   map[string]any `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		History:   []Turn{},
		Context:   map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// String returns a context value as a string, or "" when absent.
func (c *Conversation) String(key string) string {
	if v, ok := c.Context[key].(string); ok {
		return v
	}
	return ""
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.History = append([]Turn(nil), c.History...)
	out.Context = make(map[string]any, len(c.Context))
	for k, v := range c.Context {
		out.Context[k] = v
	}
	return &out
}

// Store is safe for concurrent use. Writes to one conversation are
// serialized; the last writer wins for context keys.
type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	// Append adds turns, creating the conversation if it does not exist.
	Append(ctx context.Context, id string, turns ...Turn) (*Conversation, error)
	// SetContext stores a context value, creating the conversation if needed.
	SetContext(ctx context.Context, id, key string, value any) error
	List(ctx context.Context) ([]string, error)
	// Maintain drops expired entries and reclaims space.
	Maintain(ctx context.Context) error
	Close() error
}

// NewID returns an opaque conversation id such as "conv_1a2b3c4d".
func NewID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Open builds the store selected by cfg.Store.Backend.
func Open(cfg *config.Config, logger *logrus.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemoryStore(cfg.Store.MaxConversations, cfg.Store.TTL.Std()), nil
	case "badger":
		return NewBadgerStore(cfg.Store.Path, cfg.Store.TTL.Std(), cfg.Maintenance.GCDiscardRatio, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
