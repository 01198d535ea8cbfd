package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

// defaultIdentity is used when the clinic has not configured a persona.
const defaultIdentity = "أنت مساعد ذكي ومفيد."

const actionProtocol = `📌 **PROTOCOL FOR ACTIONS (IMPORTANT):**
- If the user explicitly asks to book an appointment, YOU MUST output a special tag at the end of your response:
  ` + "`[[APPOINTMENT: YYYY-MM-DD | HH:MM | Customer Name | Notes]]`" + `
- Dates must be in the future.
- Format strictly: YYYY-MM-DD (e.g. 2025-05-20).
- Time strictly: HH:MM AM/PM or 24h (e.g. 10:30 AM).
- If details are missing, ASK the user for them instead of inventing them.
- To classify the customer, append: ` + "`[[TAGS: tag_name, tag_name]]`" + ` using only the tags listed below.

رد الآن باحترافية وبدون تكرار.`

// BuildSystemInstruction assembles the system prompts for a generative reply:
// clinic persona, active service catalog, known tag names, the action protocol
// and today's date.
func BuildSystemInstruction(identity string, services []storage.ServiceRecord, tagNames []string, now time.Time) []string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = defaultIdentity
	}

	var b strings.Builder
	b.WriteString(identity)

	if len(services) > 0 {
		b.WriteString("\n\n📌 خدماتنا:\n")
		for _, svc := range services {
			if svc.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", svc.Name, svc.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", svc.Name)
			}
		}
	}

	if len(tagNames) > 0 {
		b.WriteString("\n📌 الوسوم المتاحة: ")
		b.WriteString(strings.Join(tagNames, ", "))
		b.WriteString("\n")
	}

	return []string{
		strings.TrimRight(b.String(), "\n"),
		actionProtocol,
		"تاريخ اليوم: " + now.Format("Monday, 2 January 2006"),
	}
}

// BuildHistory converts stored messages into chat turns, oldest first.
// Empty-content rows (pure media without caption) are skipped.
func BuildHistory(msgs []storage.MessageRecord) []ChatMessage {
	history := make([]ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := ChatRoleUser
		if msg.Direction == storage.DirectionOut {
			role = ChatRoleAssistant
		}
		history = append(history, ChatMessage{Role: role, Content: content})
	}
	return history
}
