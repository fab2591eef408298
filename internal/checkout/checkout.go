// Package checkout replays a confirmed selection on the listing site in a
// real browser and reports the checkout URL it reaches. It never pays.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/booking"
	"github.com/danpilch/tripdesk/internal/config"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Step records the outcome of one automation step.
type Step struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type Result struct {
	Status      Status `json:"status"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	Message     string `json:"message"`
	Steps       []Step `json:"steps"`
}

// Reached reports whether a usable URL was obtained.
func (r *Result) Reached() bool {
	return (r.Status == StatusSuccess || r.Status == StatusPartial) && r.CheckoutURL != ""
}

func (r *Result) step(name string, ok bool, detail string) {
	r.Steps = append(r.Steps, Step{Name: name, OK: ok, Detail: detail})
}

type Automator struct {
	browser Browser
	cfg     config.CheckoutConfig
	logger  *logrus.Logger
}

func NewAutomator(browser Browser, cfg config.CheckoutConfig, logger *logrus.Logger) *Automator {
	return &Automator{
		browser: browser,
		cfg:     cfg,
		logger:  logger,
	}
}

// Execute opens listingURL, selects the snapshot's offering and class, and
// presses the booking button. Every exit path closes the browser session.
func (a *Automator) Execute(ctx context.Context, listingURL string, snap booking.Snapshot) *Result {
	result := &Result{}
	log := a.logger.WithFields(logrus.Fields{
		"url":          listingURL,
		"train_number": snap.Identifier,
		"coach_class":  snap.Class,
	})

	sess, err := a.browser.NewSession(ctx)
	if err != nil {
		log.WithField("error", err).Error("starting browser failed")
		result.Status = StatusError
		result.Message = "Could not start the browser for checkout. Please try again later."
		result.step("launch", false, err.Error())
		return result
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithField("error", err).Warn("closing browser session failed")
		}
	}()
	result.step("launch", true, "")

	if err := sess.Open(ctx, listingURL); err != nil {
		log.WithField("error", err).Warn("opening listing page failed")
		result.Status = StatusError
		result.Message = fmt.Sprintf("Could not load the listing page. Open %s and select train %s manually.", listingURL, snap.Identifier)
		result.step("open", false, err.Error())
		return result
	}
	result.step("open", true, "")

	var found StepResult
	if err := sess.Eval(ctx, locateByAttributeScript(snap.Identifier), &found); err != nil {
		log.WithField("error", err).Debug("attribute lookup failed")
	}
	if !found.Matched {
		if err := sess.Eval(ctx, locateByTextScript(snap.Identifier, snap.Kind), &found); err != nil {
			log.WithField("error", err).Debug("text lookup failed")
		}
	}
	if !found.Matched {
		result.Status = StatusNotFound
		result.CheckoutURL = a.location(ctx, sess, listingURL)
		result.Message = fmt.Sprintf("Train %s was not found on the live page. It may be sold out or the listing changed; open the page and pick it manually.", snap.Identifier)
		result.step("locate", false, "no matching element")
		log.Info("offering not found on page")
		return result
	}
	result.step("locate", true, found.Via)
	if err := sleep(ctx, a.cfg.ClickDelay.Std()); err != nil {
		return a.interrupted(result, sess, listingURL)
	}

	var warnings []string
	var picked StepResult
	if err := sess.Eval(ctx, selectClassScript(snap.Class), &picked); err != nil {
		log.WithField("error", err).Debug("class selection script failed")
	}
	if picked.Matched {
		result.step("class", true, picked.Via)
		if err := sleep(ctx, a.cfg.ClickDelay.Std()); err != nil {
			return a.interrupted(result, sess, listingURL)
		}
	} else {
		result.step("class", false, "no control for "+string(snap.Class))
		warnings = append(warnings, fmt.Sprintf("coach class %s could not be selected, choose it on the checkout page", snap.Class))
	}

	click, err := sess.Click(ctx, bookScript())
	if err != nil {
		log.WithField("error", err).Warn("book button click failed")
	}
	if err != nil || !click.Matched {
		result.Status = StatusPartial
		result.CheckoutURL = a.location(ctx, sess, listingURL)
		result.step("book", false, "no book or continue button")
		warnings = append(warnings, "the Book button could not be pressed, continue from the page")
		result.Message = partialMessage(warnings)
		return result
	}
	detail := click.Via
	if click.NewTab {
		detail += " (new tab)"
	}
	result.step("book", true, detail)

	result.CheckoutURL = click.URL
	if result.CheckoutURL == "" {
		result.CheckoutURL = a.location(ctx, sess, listingURL)
	}

	if len(warnings) > 0 {
		result.Status = StatusPartial
		result.Message = partialMessage(warnings)
	} else {
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("Checkout page reached for train %s in %s. Complete passenger details and payment at the link.", snap.Identifier, snap.ClassLabel)
	}

	log.WithFields(logrus.Fields{
		"status":       result.Status,
		"checkout_url": result.CheckoutURL,
	}).Info("checkout automation finished")
	return result
}

func (a *Automator) location(ctx context.Context, sess Session, fallback string) string {
	u, err := sess.Location(ctx)
	if err != nil || u == "" {
		return fallback
	}
	return u
}

func (a *Automator) interrupted(result *Result, sess Session, listingURL string) *Result {
	result.Status = StatusPartial
	result.CheckoutURL = a.location(context.Background(), sess, listingURL)
	result.Message = "Checkout was interrupted before it finished. Continue from the link."
	return result
}

func partialMessage(warnings []string) string {
	return "Reached the booking page with caveats: " + strings.Join(warnings, "; ") + "."
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
