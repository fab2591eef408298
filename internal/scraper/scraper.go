// Package scraper fetches travel listing pages and extracts offerings from
// them with a chain of heuristic strategies.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bluele/gcache"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/config"
	"github.com/danpilch/tripdesk/internal/station"
)

var ErrUpstreamUnavailable = errors.New("listing site unavailable")

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Result is the outcome of one listing scrape. Failures are reported through
// Status and Message; Err keeps the underlying cause for logging.
type Result struct {
	Status    Status             `json:"status"`
	Kind      catalog.Kind       `json:"kind"`
	URL       string             `json:"url"`
	Offerings []catalog.Offering `json:"offerings"`
	Message   string             `json:"message"`
	Strategy  string             `json:"strategy,omitempty"`
	Cached    bool               `json:"cached,omitempty"`
	Err       error              `json:"-"`
}

// Catalog wraps the offerings for selection.
func (r *Result) Catalog() *catalog.Catalog {
	return catalog.New(r.Kind, r.URL, r.Offerings)
}

type Scraper struct {
	cfg      config.ScraperConfig
	resolver *station.Resolver
	logger   *logrus.Logger
	cache    gcache.Cache
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg config.ScraperConfig, resolver *station.Resolver, logger *logrus.Logger) *Scraper {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	return &Scraper{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger,
		cache:    gcache.New(size).LRU().Expiration(cfg.CacheTTL.Std()).Build(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Scrape builds the listing URL for a route and scrapes it.
func (s *Scraper) Scrape(ctx context.Context, origin, destination, date string, kind catalog.Kind) *Result {
	target, err := s.ListingURL(kind, origin, destination, date)
	if err != nil {
		return &Result{
			Status:    StatusError,
			Kind:      kind,
			Offerings: []catalog.Offering{},
			Message:   err.Error(),
			Err:       err,
		}
	}
	return s.ScrapeURL(ctx, target, kind)
}

// ScrapeURL fetches and parses a listing page. Successful results are cached
// per URL so a later booking sees the same indexes the user was shown.
func (s *Scraper) ScrapeURL(ctx context.Context, target string, kind catalog.Kind) *Result {
	if cached, ok := s.Cached(target); ok && cached.Kind == kind {
		copied := *cached
		copied.Cached = true
		return &copied
	}

	result := &Result{Kind: kind, URL: target, Offerings: []catalog.Offering{}}
	log := s.logger.WithFields(logrus.Fields{
		"url":  target,
		"kind": kind,
	})

	body, err := s.fetch(ctx, target)
	if err != nil {
		result.Status = StatusError
		result.Err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		result.Message = friendlyFetchError(err, s.cfg.Timeout.Std())
		log.WithField("error", err).Warn("listing fetch failed")
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		result.Status = StatusError
		result.Err = fmt.Errorf("parsing listing page: %w", err)
		result.Message = "The listing page could not be read. Please try again later."
		log.WithField("error", err).Warn("listing parse failed")
		return result
	}

	offerings, strategy := Extract(doc, optionsFromConfig(s.cfg, kind))
	result.Strategy = strategy

	if len(offerings) == 0 {
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("No %s could be read from the listing page. The site layout may have changed; open %s directly or try again later.", kind.Plural(), target)
		log.WithField("strategy", strategy).Info("listing page had no offerings")
		return result
	}

	result.Status = StatusSuccess
	result.Offerings = offerings
	if kind == catalog.KindTrain {
		result.Message = fmt.Sprintf("Found %d trains. Please select one and choose a coach class.", len(offerings))
	} else {
		result.Message = fmt.Sprintf("Found %d %s. Please select one by index.", len(offerings), kind.Plural())
	}
	log.WithFields(logrus.Fields{
		"strategy":  strategy,
		"offerings": len(offerings),
	}).Info("listing scraped")

	if err := s.cache.Set(target, result); err != nil {
		log.WithField("error", err).Debug("caching listing failed")
	}
	return result
}

// Cached returns a previously successful result for target.
func (s *Scraper) Cached(target string) (*Result, bool) {
	v, err := s.cache.GetIFPresent(target)
	if err != nil {
		return nil, false
	}
	r, ok := v.(*Result)
	return r, ok
}

// PruneCache drops expired listing results and returns how many remain.
func (s *Scraper) PruneCache() int {
	for _, key := range s.cache.Keys(false) {
		_, _ = s.cache.GetIFPresent(key)
	}
	return s.cache.Len(true)
}

func (s *Scraper) limiter(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.Burst)
		s.limiters[host] = l
	}
	return l
}

func (s *Scraper) fetch(ctx context.Context, target string) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid listing url %q", target)
	}
	if err := s.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.Timeout.Std())

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		status = r.StatusCode
	})

	if err := c.Visit(target); err != nil {
		if status >= 400 {
			return nil, &httpStatusError{code: status}
		}
		return nil, err
	}
	if body == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("empty response")
	}
	return body, nil
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func friendlyFetchError(err error, timeout time.Duration) string {
	var statusErr *httpStatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The listing site returned HTTP %d. Check the route and date, then try again.", statusErr.code)
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("The listing site did not respond within %s. Please try again in a moment.", timeout)
	case errors.Is(err, context.Canceled):
		return "The listing request was cancelled before the site responded. Please try again."
	default:
		return "Could not reach the listing site. Check your connection and try again."
	}
}
