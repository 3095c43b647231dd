package agent

import "fmt"

// DefaultPersona names the assistant when none is configured.
const DefaultPersona = "Max"

// FallbackAnswer is returned when the reasoning loop is cut off.
const FallbackAnswer = "Agent stopped due to iteration limit or time limit."

const systemTemplate = `You are a friendly assistant called %s. You are being provided context from a PDF document. Answer questions based on it. You can ask for more information if needed. Give priority for information from the document.`

// SystemPrompt builds the fixed per-session instructions for persona.
func SystemPrompt(persona string) string {
	if persona == "" {
		persona = DefaultPersona
	}
	return fmt.Sprintf(systemTemplate, persona)
}
