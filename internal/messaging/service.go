// Package messaging texts shared flows to a crew.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/Kelp/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSendConcurrency bounds parallel sends for one share.
	DefaultSendConcurrency = 3
	// MaxRecipients bounds how many numbers one send may target.
	MaxRecipients = 10
	// MaxBodyLength is Twilio's limit for a single message body.
	MaxBodyLength = 1600
)

var (
	ErrNoRecipients      = errors.New("no recipients provided")
	ErrTooManyRecipients = fmt.Errorf("more than %d recipients", MaxRecipients)
)

var phoneNumberRegex = regexp.MustCompile(`[^\d]`)

// Service renders flows and fans them out to a Sender.
type Service struct {
	sender      Sender
	concurrency int
}

func NewService(sender Sender) *Service {
	return &Service{sender: sender, concurrency: DefaultSendConcurrency}
}

// ValidateAndCanonicalizeRecipient returns the number in E.164 form.
// Ten-digit numbers without a leading plus are treated as North American.
func (s *Service) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	digits := phoneNumberRegex.ReplaceAllString(trimmed, "")
	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", digits)
	}
	if len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number: %q is too long (maximum 15 digits)", digits)
	}
	if !strings.HasPrefix(trimmed, "+") && len(digits) == 10 {
		digits = "1" + digits
	}

	canonical := "+" + digits
	if canonical != trimmed {
		slog.Debug("Service canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendFlow texts a summary of f to each recipient. Per-recipient failures are reported in the
// response; the error is only set when nothing could be attempted.
func (s *Service) SendFlow(ctx context.Context, f models.Flow, link string, recipients []string) (models.SendFlowResponse, error) {
	resp := models.SendFlowResponse{Sent: []string{}}
	if len(recipients) == 0 {
		return resp, ErrNoRecipients
	}
	if len(recipients) > MaxRecipients {
		return resp, ErrTooManyRecipients
	}

	failed := make(map[string]string)
	var targets []string
	seen := make(map[string]bool)
	for _, r := range recipients {
		canonical, err := s.ValidateAndCanonicalizeRecipient(r)
		if err != nil {
			failed[r] = err.Error()
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		targets = append(targets, canonical)
	}

	body := RenderSummary(f, link)
	results := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, to := range targets {
		g.Go(func() error {
			results[i] = s.sender.SendMessage(gctx, to, body)
			return nil
		})
	}
	_ = g.Wait()

	for i, to := range targets {
		if results[i] != nil {
			failed[to] = results[i].Error()
			continue
		}
		resp.Sent = append(resp.Sent, to)
	}
	if len(failed) > 0 {
		resp.Failed = failed
	}
	slog.Info("Service.SendFlow: flow shared", "flow_id", f.ID, "sent", len(resp.Sent), "failed", len(failed))
	return resp, nil
}

// RenderSummary formats a flow as a plain-text message.
func RenderSummary(f models.Flow, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your Kelp plan: %d stops, %s", len(f.Stops), formatDuration(f.TotalDuration))
	if f.BudgetRange != "" {
		fmt.Fprintf(&b, ", %s", f.BudgetRange)
	}
	b.WriteString("\n")
	for i, stop := range f.Stops {
		fmt.Fprintf(&b, "%d. %s %s (%s, %d min)\n", i+1, stop.Time, stop.Name, stop.Category, stop.Duration)
	}
	if link != "" {
		fmt.Fprintf(&b, "View: %s\n", link)
	}

	out := strings.TrimRight(b.String(), "\n")
	if r := []rune(out); len(r) > MaxBodyLength {
		out = string(r[:MaxBodyLength-1]) + "…"
	}
	return out
}

func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
