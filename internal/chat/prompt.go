package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/Kelp/internal/models"
)

const instructionSchema = "```json\n" + `{
  "action": "update_flow",
  "changes": {
    "swap": [{"stopIndex": 0, "newStop": {"name": "New Place", "category": "Restaurant", "rating": 4.5, "price": "$$", "reason": "Better value with great atmosphere", "duration": 90, "tags": ["Cozy", "Date Night"]}}],
    "remove": []
  }
}` + "\n```"

// BuildSystemPrompt renders the assistant persona, the current itinerary and the edit contract.
func BuildSystemPrompt(f *models.Flow) string {
	var b strings.Builder
	b.WriteString("You are Kelp AI Assistant, a helpful and friendly AI that helps users plan their perfect night out. ")
	b.WriteString("You have access to the user's current itinerary and can suggest modifications.\n\n")

	if f != nil && len(f.Stops) > 0 {
		b.WriteString("CURRENT ITINERARY:\n")
		b.WriteString(RenderFlow(f))
	} else {
		b.WriteString("No itinerary created yet.\n")
	}

	b.WriteString("\nCAPABILITIES:\n")
	b.WriteString("- Suggest swapping stops for cheaper or better alternatives\n")
	b.WriteString("- Recommend romantic, outdoor or other vibe-specific spots\n")
	b.WriteString("- Help adjust timing and duration\n")
	b.WriteString("- Provide local insights and tips\n")

	b.WriteString("\nRESPONSE FORMAT:\n")
	b.WriteString("When you change the itinerary, include exactly one JSON block in this format:\n")
	b.WriteString(instructionSchema)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- stopIndex and remove entries are 0-based positions in the current itinerary.\n")
	b.WriteString("- Every swap carries a complete replacement stop: name, category, rating, price, reason, duration and tags.\n")
	b.WriteString("- remove lists the indices of stops to drop, all relative to the current itinerary.\n")
	b.WriteString("- For general conversation, answer naturally and leave the JSON block out entirely.\n")
	b.WriteString("\nBe concise, friendly and helpful. When suggesting a change, explain why it improves the outing.")
	return b.String()
}

// RenderFlow lists every stop with its 0-based index.
func RenderFlow(f *models.Flow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The itinerary has %d stops:\n", len(f.Stops))
	for i, s := range f.Stops {
		fmt.Fprintf(&b, "[%d] %s (%s) - %s, %d min, %s, %s★ - %q", i, s.Name, s.Category, s.Time, s.Duration,
			s.Price, strconv.FormatFloat(s.Rating, 'f', -1, 64), s.Reason)
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, " [tags: %s]", strings.Join(s.Tags, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total duration: %d minutes\n", f.TotalDuration)
	if f.BudgetRange != "" {
		fmt.Fprintf(&b, "Budget range: %s\n", f.BudgetRange)
	}
	return b.String()
}

// FilterHistory keeps user and assistant turns, drops assistant turns before the first user
// turn (the welcome message) and keeps the most recent MaxHistory turns.
func FilterHistory(history []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case models.RoleUser:
		case models.RoleAssistant:
			if len(out) == 0 {
				continue
			}
		default:
			continue
		}
		out = append(out, m)
	}
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}
