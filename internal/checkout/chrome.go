package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/config"
)

// Chrome launches a local Chrome, or attaches to a remote one when
// RemoteURL is configured.
type Chrome struct {
	cfg       config.CheckoutConfig
	userAgent string
	logger    *logrus.Logger
}

func NewChrome(cfg config.CheckoutConfig, userAgent string, logger *logrus.Logger) *Chrome {
	return &Chrome{cfg: cfg, userAgent: userAgent, logger: logger}
}

func (c *Chrome) NewSession(ctx context.Context) (Session, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if c.cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, c.cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", c.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1920, 1080),
			chromedp.UserAgent(c.userAgent),
		)
		if c.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.logger.Debugf),
		chromedp.WithErrorf(c.logger.Debugf),
	)

	// Start the browser now so that per-step timeouts never own its lifetime.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &chromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		cfg:         c.cfg,
		logger:      c.logger,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	cfg         config.CheckoutConfig
	logger      *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

// bind runs chromedp actions on the tab while honouring the caller's ctx.
func (s *chromeSession) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Open(ctx context.Context, url string) error {
	idle := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	navCtx, cancel := s.bind(ctx, s.cfg.NavigationTimeout.Std())
	defer cancel()
	if err := chromedp.Run(navCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
	); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	idleTimer := time.NewTimer(s.cfg.IdleTimeout.Std())
	defer idleTimer.Stop()
	select {
	case <-idle:
	case <-idleTimer.C:
		s.logger.WithField("url", url).Debug("network did not go idle, continuing")
	case <-ctx.Done():
		return ctx.Err()
	}

	return sleep(ctx, s.cfg.SettleDelay.Std())
}

func (s *chromeSession) Eval(ctx context.Context, script string, out any) error {
	runCtx, cancel := s.bind(ctx, s.cfg.NavigationTimeout.Std())
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

func (s *chromeSession) Click(ctx context.Context, script string) (ClickResult, error) {
	var res ClickResult

	newTabs := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})

	if err := s.Eval(ctx, script, &res); err != nil {
		return res, err
	}
	if !res.Matched {
		return res, nil
	}

	wait := time.NewTimer(s.cfg.BookDelay.Std())
	defer wait.Stop()
	select {
	case id := <-newTabs:
		newCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		defer cancel()
		runCtx, stop := context.WithTimeout(newCtx, s.cfg.NavigationTimeout.Std())
		defer stop()
		var u string
		if err := chromedp.Run(runCtx, chromedp.Sleep(s.cfg.SettleDelay.Std()), chromedp.Location(&u)); err != nil {
			return res, fmt.Errorf("reading new tab location: %w", err)
		}
		res.NewTab = true
		res.URL = u
		return res, nil
	case <-wait.C:
	case <-ctx.Done():
		return res, ctx.Err()
	}

	u, err := s.Location(ctx)
	if err != nil {
		return res, err
	}
	res.URL = u
	return res, nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, 10*time.Second)
	defer cancel()
	var u string
	if err := chromedp.Run(runCtx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return u, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.closeErr = fmt.Errorf("closing browser: %w", err)
		}
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
