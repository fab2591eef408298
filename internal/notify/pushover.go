package notify

import (
	"fmt"

	"github.com/gregdel/pushover"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/booking"
)

const (
	PriorityNormal = 0
	PriorityHigh   = 1
)

type sender interface {
	SendMessage(*pushover.Message, *pushover.Recipient) (*pushover.Response, error)
}

type Notifier struct {
	app       sender
	recipient *pushover.Recipient
	logger    *logrus.Logger
}

func NewNotifier(token, userKey string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
		logger:    logger,
	}
}

func (n *Notifier) Send(title, message string) error {
	return n.SendWithPriority(title, message, PriorityNormal)
}

func (n *Notifier) SendWithPriority(title, message string, priority int) error {
	return n.send(pushover.NewMessageWithTitle(message, title), priority)
}

func (n *Notifier) send(msg *pushover.Message, priority int) error {
	msg.Priority = priority

	resp, err := n.app.SendMessage(msg, n.recipient)
	if err != nil {
		return fmt.Errorf("sending pushover notification: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"title":      msg.Title,
		"status":     resp.Status,
		"request_id": resp.ID,
	}).Debug("notification sent")

	return nil
}

// SendCheckoutReady announces a reached checkout page. A partial checkout
// is sent at high priority because the user still has steps to finish.
func (n *Notifier) SendCheckoutReady(snap booking.Snapshot, checkoutURL string, partial bool) error {
	title := "Checkout Ready"
	priority := PriorityNormal
	if partial {
		title = "Checkout Needs Attention"
		priority = PriorityHigh
	}
	body := fmt.Sprintf("Train %s %s, %s to %s, %s (%s), from %s.",
		snap.Identifier, snap.Name, snap.Departure, snap.Arrival, snap.ClassLabel, snap.Class, snap.Price)
	if partial {
		body += "\nSome steps could not be completed automatically; finish them on the page."
	}

	msg := pushover.NewMessageWithTitle(body, title)
	msg.URL = checkoutURL
	msg.URLTitle = "Open checkout"
	return n.send(msg, priority)
}

func (n *Notifier) SendCheckoutFailed(snap booking.Snapshot, reason string) error {
	title := "Checkout Failed"
	body := fmt.Sprintf("Could not reach checkout for train %s in %s.\n%s", snap.Identifier, snap.Class, reason)
	return n.SendWithPriority(title, body, PriorityHigh)
}
