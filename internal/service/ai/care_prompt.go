package ai

import (
	"fmt"
	"strings"

	"github.com/muni-health/muni/backend/internal/model/chat"
)

// PromptTemplate defines the structure of the care assistant prompt.
type PromptTemplate struct {
	SystemPrompt    string
	PersonaHints    []string
	FormattingRules []string
}

// CarePromptManager builds the system instruction sent with every check-in turn.
type CarePromptManager struct {
	template *PromptTemplate
}

// NewCarePromptManager creates a prompt manager with the default template.
func NewCarePromptManager() *CarePromptManager {
	return &CarePromptManager{template: defaultTemplate()}
}

// BuildSystemPrompt renders the persona and formatting directives, folding in
// the condition the patient reported during onboarding.
func (pm *CarePromptManager) BuildSystemPrompt(profile chat.Profile) string {
	condition := strings.TrimSpace(profile.Condition)
	if condition == "" {
		condition = "not specified"
	}

	return fmt.Sprintf(`%s

Patient profile:
- Condition being managed: %s

Persona:
- %s

Formatting rules:
- %s`,
		pm.template.SystemPrompt,
		condition,
		strings.Join(pm.template.PersonaHints, "\n- "),
		strings.Join(pm.template.FormattingRules, "\n- "),
	)
}

func defaultTemplate() *PromptTemplate {
	return &PromptTemplate{
		SystemPrompt: "You are muni, a warm and attentive health companion who runs a short daily check-in with a patient managing a chronic condition.",
		PersonaHints: []string{
			"Acknowledge how the patient feels before giving advice",
			"Keep advice practical: hydration, meals, medication, movement, rest",
			"Never diagnose; suggest contacting a clinician when symptoms sound serious",
		},
		FormattingRules: []string{
			"Write plain sentences with no lists, headings or markdown",
			"End every sentence with a period, exclamation mark or question mark",
			"Put each suggestion the patient should act on in its own sentence",
			"If a reading such as blood sugar, pressure or heart rate sounds dangerous or critical, say so explicitly in one sentence",
			"Keep the whole reply under six sentences",
		},
	}
}
