// Package chat runs one conversational editing turn: it prompts the completion model with the
// current flow, reads back an optional edit instruction and applies it.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/models"
)

const (
	// MaxHistory is how many prior turns are sent with a new message.
	MaxHistory = 20

	DefaultReply        = "I apologize, but I couldn't generate a response. Please try again."
	RateLimitedReply    = "Rate limit exceeded. Please try again in a moment."
	QuotaExhaustedReply = "AI credits exhausted. Please add credits to continue."
	ProviderErrorReply  = "Sorry, I couldn't reach the assistant right now. Please try again."

	chatTemperature = 0.7
	chatMaxTokens   = 1024
)

// Outcome classifies how a turn ended.
type Outcome int

const (
	OutcomeReply Outcome = iota
	OutcomeRateLimited
	OutcomeQuotaExhausted
	OutcomeProviderError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeProviderError:
		return "provider_error"
	default:
		return "reply"
	}
}

// Reply is the result of one turn. On failure outcomes Message holds the apology.
type Reply struct {
	Message     string
	FlowChanges *models.EditInstruction
	Flow        *models.Flow
	Parse       ParseKind
	Outcome     Outcome
}

// Editor answers chat turns.
type Editor struct {
	completer genai.Completer
	engine    itinerary.Engine
}

// NewEditor creates an editor that applies instructions with engine.
func NewEditor(completer genai.Completer, engine itinerary.Engine) *Editor {
	return &Editor{completer: completer, engine: engine}
}

// Respond runs one turn. It never returns an error: provider failures become apology replies.
func (e *Editor) Respond(ctx context.Context, message string, f *models.Flow, history []models.ChatMessage) Reply {
	turns := FilterHistory(history)
	turns = append(turns, models.ChatMessage{Role: models.RoleUser, Content: strings.TrimSpace(message)})

	stops := 0
	if f != nil {
		stops = len(f.Stops)
	}
	slog.Debug("Editor.Respond: sending turn", "history", len(turns)-1, "stops", stops)

	content, err := e.completer.Complete(ctx, BuildSystemPrompt(f), turns,
		genai.Temperature(chatTemperature), genai.MaxTokens(chatMaxTokens))
	if err != nil {
		r := failure(err)
		metrics.Completions.WithLabelValues("chat", "error").Inc()
		metrics.ChatTurns.WithLabelValues(r.Outcome.String()).Inc()
		slog.Warn("Editor.Respond: completion failed", "outcome", r.Outcome, "error", err)
		return r
	}
	metrics.Completions.WithLabelValues("chat", "ok").Inc()

	parsed := ParseResponse(content)
	reply := Reply{Message: parsed.Text, Parse: parsed.Kind, Outcome: OutcomeReply}
	if parsed.Kind == ParsedInstruction {
		reply.FlowChanges = parsed.Instruction
		if f != nil {
			updated := e.engine.ApplyEdit(*f, parsed.Instruction)
			reply.Flow = &updated
		}
	}
	metrics.ChatTurns.WithLabelValues(parsed.Kind.String()).Inc()
	slog.Info("Editor.Respond: turn complete", "instruction", parsed.Kind, "flow_updated", reply.Flow != nil)
	return reply
}

func failure(err error) Reply {
	switch {
	case errors.Is(err, genai.ErrRateLimited):
		return Reply{Message: RateLimitedReply, Outcome: OutcomeRateLimited}
	case errors.Is(err, genai.ErrQuotaExhausted):
		return Reply{Message: QuotaExhaustedReply, Outcome: OutcomeQuotaExhausted}
	default:
		return Reply{Message: ProviderErrorReply, Outcome: OutcomeProviderError}
	}
}
