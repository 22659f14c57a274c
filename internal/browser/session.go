// Package browser implements the target-application and job-service drivers
// on top of go-rod. Each driver owns one Chrome page; the two sessions live
// for the whole run and are driven in lockstep by the single control thread.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"receiptfix/internal/config"
)

// Session owns one Chrome connection and one page.
type Session struct {
	cfg     config.BrowserConfig
	log     *zap.SugaredLogger
	browser *rod.Browser
	page    *rod.Page
}

// NewSession prepares a session; Start establishes the connection.
func NewSession(cfg config.BrowserConfig, log *zap.SugaredLogger) *Session {
	return &Session{cfg: cfg, log: log}
}

// Start connects to an existing Chrome when a debugger URL is configured, or
// launches a new one.
func (s *Session) Start(ctx context.Context) error {
	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(s.cfg.Headless)
		if s.cfg.Bin != "" {
			l = l.Bin(s.cfg.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.log.Warnw("failed to set viewport", "error", err)
	}
	s.page = page
	return nil
}

// Close shuts down the page and the browser connection.
func (s *Session) Close() error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		err := s.browser.Close()
		s.browser = nil
		return err
	}
	return nil
}

func (s *Session) nav() time.Duration { return s.cfg.NavTimeout() }

func (s *Session) navigate(ctx context.Context, url string) error {
	if err := s.page.Context(ctx).Timeout(s.nav()).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return s.page.Context(ctx).Timeout(s.nav()).WaitLoad()
}

func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.nav()).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q not found: %w", selector, err)
	}
	return el, nil
}

func (s *Session) click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *Session) input(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (s *Session) text(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// has reports element presence without waiting.
func (s *Session) has(ctx context.Context, selector string) (bool, *rod.Element, error) {
	return s.page.Context(ctx).Has(selector)
}
