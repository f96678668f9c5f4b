package notify

import (
	"fmt"

	"github.com/ignatzorin/youth-governance-backend/internal/domain/valueobject"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
)

// Message is the rendered text of an event for out-of-app channels.
type Message struct {
	SMS     string
	Subject string
	Body    string
}

// Render builds the SMS and email text of an event. ok is false for events
// that stay in-app only.
func Render(event string, data map[string]any) (Message, bool) {
	title := str(data, "title")
	reason := str(data, "reason")

	switch event {
	case models.EventProposalApproved:
		budget := ""
		if v, ok := data["approved_budget"].(float64); ok {
			budget = " with a budget of " + valueobject.Money{Amount: v}.String()
		}
		return Message{
			SMS:     fmt.Sprintf("SK Portal: your proposal %q was approved%s.", title, budget),
			Subject: "Your proposal was approved",
			Body: fmt.Sprintf("Good news!\n\nYour proposal %q was approved%s.\n"+
				"Log in to the SK portal to see the remarks of the reviewer.\n", title, budget),
		}, true
	case models.EventProposalRejected:
		return Message{
			SMS:     fmt.Sprintf("SK Portal: your proposal %q was not approved. Reason: %s", title, reason),
			Subject: "Your proposal needs changes",
			Body: fmt.Sprintf("Your proposal %q was not approved.\n\nReason: %s\n\n"+
				"You can update it and submit it again from the SK portal.\n", title, reason),
		}, true
	case models.EventProfileApproved:
		return Message{
			SMS:     "SK Portal: your youth profile registration was approved. Welcome to the Katipunan ng Kabataan!",
			Subject: "Your youth profile was approved",
			Body:    "Your youth profile registration was approved.\n\nWelcome to the Katipunan ng Kabataan!\n",
		}, true
	case models.EventProfileRejected:
		return Message{
			SMS:     fmt.Sprintf("SK Portal: your youth profile registration was not approved. Reason: %s", reason),
			Subject: "Your youth profile needs changes",
			Body: fmt.Sprintf("Your youth profile registration was not approved.\n\nReason: %s\n\n"+
				"Please correct it and submit again from the SK portal.\n", reason),
		}, true
	case models.EventProgramAnnounced:
		committee := str(data, "committee")
		return Message{
			SMS:     fmt.Sprintf("SK Portal: new %s program approved: %q. Check the portal for details.", committee, title),
			Subject: fmt.Sprintf("New %s program: %s", committee, title),
			Body: fmt.Sprintf("A new program matching your interest in %s was approved:\n\n%s\n\n"+
				"Check the SK portal for the schedule and how to join.\n", committee, title),
		}, true
	}
	return Message{}, false
}

func str(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
