// Package notify delivers cycle summaries to a Telegram-style bot API.
// Delivery is strictly best-effort: the pipeline never fails, blocks, or
// retries because a chat message did not go out.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

const sendTimeout = 10 * time.Second

// Notifier posts messages through a circuit breaker and a rate limiter.
// When disabled it is a no-op with zero allocations per call.
type Notifier struct {
	cfg     config.NotifyConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	// onFailure is invoked once per failed delivery; the pipeline hooks a
	// counter here.
	onFailure func()
}

// New builds a notifier from config. The breaker opens after three
// consecutive failures and probes again after a minute, so a dead bot API
// costs at most a few timeouts per run.
func New(cfg config.NotifyConfig, onFailure func()) *Notifier {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: sendTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "telegram",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		onFailure: onFailure,
	}
}

// Send posts one message. Every failure path logs and returns; nothing
// propagates to the caller.
func (n *Notifier) Send(ctx context.Context, text string) {
	if !n.cfg.Enabled || n.cfg.Token == "" || n.cfg.ChatID == "" {
		return
	}
	if !n.limiter.Allow() {
		log.Debug().Msg("notification dropped by rate limiter")
		return
	}

	_, err := n.breaker.Execute(func() (any, error) {
		return nil, n.post(ctx, text)
	})
	if err != nil {
		if n.onFailure != nil {
			n.onFailure()
		}
		log.Warn().Err(err).Msg("notification not delivered")
	}
}

func (n *Notifier) post(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage",
		strings.TrimRight(n.cfg.APIURL, "/"), n.cfg.Token)
	form := url.Values{
		"chat_id": {n.cfg.ChatID},
		"text":    {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot api status %d", resp.StatusCode)
	}
	return nil
}

// CycleSummary renders the produced tickets for one generation cycle.
func CycleSummary(tickets []ticket.Ticket) string {
	if len(tickets) == 0 {
		return "cycle finished: no tickets produced"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cycle finished: %d tickets\n", len(tickets))
	for _, t := range tickets {
		fmt.Fprintf(&b, "%s %s %v", t.Game, t.Algorithm, t.Numbers)
		if t.Note != ticket.NoteNormal {
			fmt.Fprintf(&b, " (%s)", t.Note)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// AuditSummary renders the judge's outcome.
func AuditSummary(audited []ticket.Ticket, awaiting int) string {
	if len(audited) == 0 {
		return fmt.Sprintf("audit: nothing scored, %d awaiting results", awaiting)
	}
	best := audited[0]
	for _, t := range audited[1:] {
		if t.Score > best.Score {
			best = t
		}
	}
	return fmt.Sprintf("audit: %d tickets scored, best %s %s score %.1f (%d hits), %d awaiting",
		len(audited), best.Game, best.Algorithm, best.Score, best.Hits, awaiting)
}
