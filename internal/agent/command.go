package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Command runs a local program per turn: the query on stdin, the reply on
// stdout as JSON or plain text.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  *logrus.Logger
}

func NewCommand(argv []string, timeout time.Duration, logger *logrus.Logger) *Command {
	return &Command{argv: argv, timeout: timeout, logger: logger}
}

func (c *Command) Name() string { return "command" }

func (c *Command) Respond(ctx context.Context, req Request) (*Reply, error) {
	if len(c.argv) == 0 {
		return nil, fmt.Errorf("%w: no command configured", ErrBackendUnavailable)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(req.Query)
	cmd.Env = append(os.Environ(),
		"CONVERSATION_ID="+req.ConversationID,
		"CONVERSATION_STEP="+req.Step,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	log := c.logger.WithFields(logrus.Fields{
		"command":  c.argv[0],
		"duration": time.Since(start).String(),
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("agent command timed out after %s", c.timeout)
		}
		log.WithFields(logrus.Fields{
			"error":  err,
			"stderr": strings.TrimSpace(stderr.String()),
		}).Warn("agent command failed")
		return nil, fmt.Errorf("running agent command: %w", err)
	}
	log.Debug("agent command finished")

	return parseReply(out)
}
