package chat

import (
	"encoding/json"
	"log/slog"

	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/models"
)

// ParseKind tags the result of reading an assistant response.
type ParseKind int

const (
	// NoInstruction means the response carries no actionable edit.
	NoInstruction ParseKind = iota
	// ParsedInstruction means a valid update_flow instruction was found.
	ParsedInstruction
	// MalformedInstruction means a fenced block was present but could not be decoded.
	MalformedInstruction
)

func (k ParseKind) String() string {
	switch k {
	case ParsedInstruction:
		return "parsed"
	case MalformedInstruction:
		return "malformed"
	default:
		return "none"
	}
}

// Parsed is a response split into display text and an optional instruction.
type Parsed struct {
	Kind        ParseKind
	Instruction *models.EditInstruction
	Text        string
}

// ParseResponse reads the first fenced JSON block as an edit instruction and strips every
// fenced block from the display text. Instructions with another action are ignored.
func ParseResponse(content string) Parsed {
	p := Parsed{Kind: NoInstruction, Text: genai.StripFencedJSON(content)}
	if p.Text == "" {
		p.Text = DefaultReply
	}

	body, ok := genai.FencedJSON(content)
	if !ok {
		return p
	}
	var instr models.EditInstruction
	if err := json.Unmarshal([]byte(body), &instr); err != nil {
		slog.Warn("chat.ParseResponse: discarding malformed instruction", "error", err, "length", len(body))
		p.Kind = MalformedInstruction
		return p
	}
	if instr.Action != models.ActionUpdateFlow {
		slog.Debug("chat.ParseResponse: ignoring instruction", "action", instr.Action)
		return p
	}
	p.Kind = ParsedInstruction
	p.Instruction = &instr
	return p
}
