// Package notify broadcasts alert messages to the configured subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var ErrAlertDelivery = errors.New("alert delivery failed")

const (
	DefaultAPIBase = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
	defaultFanout  = 4
)

// defaultMessagesPerSecond is Telegram's documented ceiling for one bot
// across all chats.
const defaultMessagesPerSecond = 30

type Config struct {
	BotToken          string
	Subscribers       []string
	APIBase           string
	Timeout           time.Duration // per recipient
	MaxParallel       int
	MessagesPerSecond float64 // paces sendMessage calls across recipients
}

// Report lists the outcome of one broadcast.
type Report struct {
	Delivered []string
	Failed    map[string]error
}

func (r Report) OK() bool { return len(r.Failed) == 0 }

// Telegram sends messages through the Telegram bot sendMessage endpoint.
type Telegram struct {
	client      *http.Client
	endpoint    string
	subscribers []string
	timeout     time.Duration
	fanout      int
	pace        *rate.Limiter
	logger      *slog.Logger
}

func NewTelegram(cfg Config, client *http.Client, logger *slog.Logger) *Telegram {
	if client == nil {
		client = &http.Client{}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	fanout := cfg.MaxParallel
	if fanout <= 0 {
		fanout = defaultFanout
	}

	perSecond := cfg.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = defaultMessagesPerSecond
	}

	subs := make([]string, 0, len(cfg.Subscribers))
	for _, s := range cfg.Subscribers {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}

	return &Telegram{
		client:      client,
		endpoint:    base + "/bot" + cfg.BotToken + "/sendMessage",
		subscribers: subs,
		timeout:     timeout,
		fanout:      fanout,
		pace:        rate.NewLimiter(rate.Limit(perSecond), fanout),
		logger:      logger,
	}
}

// Broadcast delivers message to every subscriber. A failed recipient is
// logged and does not affect the others; nothing is retried.
func (t *Telegram) Broadcast(ctx context.Context, message string) Report {
	t.logger.Info("broadcasting alert", "recipients", len(t.subscribers), "message", message)

	var (
		mu     sync.Mutex
		report = Report{Failed: make(map[string]error)}
		g      errgroup.Group
	)
	g.SetLimit(t.fanout)

	for _, chatID := range t.subscribers {
		g.Go(func() error {
			err := t.send(ctx, chatID, message)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[chatID] = err
				t.logger.Warn("alert not delivered", "chat_id", chatID, "error", err)
				return nil
			}
			report.Delivered = append(report.Delivered, chatID)
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func (t *Telegram) send(ctx context.Context, chatID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// Waiting for a send slot counts against the recipient's timeout.
	if err := t.pace.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %v", ErrAlertDelivery, err)
	}

	form := url.Values{"chat_id": {chatID}, "text": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrAlertDelivery, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlertDelivery, redact(err, t.endpoint))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrAlertDelivery, resp.StatusCode)
	}
	return nil
}

// redact keeps the bot token out of logged transport errors, which embed the
// request URL.
func redact(err error, endpoint string) string {
	msg := err.Error()
	if i := strings.Index(endpoint, "/bot"); i >= 0 {
		msg = strings.ReplaceAll(msg, endpoint, endpoint[:i]+"/bot<redacted>/sendMessage")
	}
	return msg
}
