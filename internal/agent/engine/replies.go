package engine

import (
	"fmt"
	"strings"

	"github.com/saleswire/server/internal/agent/catalog"
)

// Fixed conversational replies. Transports reuse ReplyTurnFailure as their
// own fallback so the user sees the same message wherever a turn dies.
const (
	ReplyResetDone        = "No problem! I've cleared everything. What new sales data can I help you find?"
	ReplyAllClear         = "All clear. What would you like to ask now?"
	ReplyGreeting         = "Hello! How can I help you with your sales data today?"
	ReplyDomainDecline    = "I am a sales data assistant. How can I assist you with a sales data query?"
	ReplyAcknowledgment   = "ya! so is there anything else you'd like to know about the sales data?"
	ReplyGoodbye          = "Goodbye! Feel free to return anytime you need help with sales data. Have a great day! 👋"
	ReplyNoTableContext   = "I don't have any previous result to display as a table."
	ReplyNoClarifyContext = "I don't have a previous result to clarify. Could you ask your question again?"
	ReplyTurnFailure      = "I encountered an error while processing your request. Please try rephrasing your question or type 'start over' to begin again."
	ReplyCollectionGiveUp = "I couldn't pin down everything I need for that question. Let's start fresh - you can rephrase it or type 'start over'."
)

// paramGuidance gives a usage example per parameter for the generic prompt
// forms.
var paramGuidance = map[string]string{
	catalog.ParamN:                "a number (e.g., 'top 5', 'best 10', or just '5')",
	catalog.ParamSort:             "sorting direction (e.g., 'highest', 'lowest', 'top', 'bottom')",
	catalog.ParamStartDate:        "start date (e.g., 'last month', 'January 1 2024', '2024-01-01')",
	catalog.ParamEndDate:          "end date (e.g., 'today', 'December 31 2024', '2024-12-31')",
	catalog.ParamClusterID:        "cluster code (e.g., 'RJC01', 'MHC05')",
	catalog.ParamCSOID:            "CSO ID code (e.g., 'CSO001')",
	catalog.ParamStateID:          "state code (e.g., 'BH', 'RJ', 'MH')",
	catalog.ParamBusinessCategory: "business unit (e.g., 'FMEG', 'Wires & Cables', 'Wiring Devices & Switchgear')",
}

// paramPrompts are the natural single-parameter questions.
var paramPrompts = map[string]string{
	catalog.ParamStartDate:        "For which time period? You can say something like 'last month', 'this quarter', or give me specific dates.",
	catalog.ParamEndDate:          "Until when? You can say 'today', 'end of last month', or a specific date.",
	catalog.ParamN:                "How many results would you like to see? For example, 'top 5' or just '10'.",
	catalog.ParamStateID:          "Which state are you interested in? Please provide the state code (e.g., 'RJ', 'MH', 'BH').",
	catalog.ParamClusterID:        "Which cluster? Please provide the cluster code (e.g., 'RJC01', 'MHC05').",
	catalog.ParamCSOID:            "Which CSO are you looking for? Please provide the CSO ID.",
	catalog.ParamBusinessCategory: "Which business unit? You can say 'FMEG', 'Wires & Cables', 'Switchgear' or their export variant.",
}

// missingParamsPrompt asks for exactly the missing parameters, phrased by
// how many there are. Both dates missing collapses to one time question.
func missingParamsPrompt(missing []string) string {
	switch len(missing) {
	case 1:
		if prompt, ok := paramPrompts[missing[0]]; ok {
			return prompt
		}
		return fmt.Sprintf("Could you specify the %s? (%s)", spoken(missing[0]), guidance(missing[0]))
	case 2:
		if missingDatesOnly(missing) {
			return "Which time period should I look at?"
		}
		return fmt.Sprintf("I need two more details: %s and %s.", describe(missing[0]), describe(missing[1]))
	case 3:
		return fmt.Sprintf("I need a few more details: %s, %s, and %s.", describe(missing[0]), describe(missing[1]), describe(missing[2]))
	default:
		described := make([]string, len(missing))
		for i, p := range missing {
			described[i] = describe(p)
		}
		head := strings.Join(described[:len(described)-1], ", ")
		return fmt.Sprintf("I need some more information: %s, and %s.", head, described[len(described)-1])
	}
}

func missingDatesOnly(missing []string) bool {
	if len(missing) != 2 {
		return false
	}
	seen := map[string]bool{missing[0]: true, missing[1]: true}
	return seen[catalog.ParamStartDate] && seen[catalog.ParamEndDate]
}

func describe(param string) string {
	return fmt.Sprintf("the %s (%s)", spoken(param), guidance(param))
}

func spoken(param string) string {
	return strings.ReplaceAll(param, "_", " ")
}

func guidance(param string) string {
	if g, ok := paramGuidance[param]; ok {
		return g
	}
	return "please specify"
}
