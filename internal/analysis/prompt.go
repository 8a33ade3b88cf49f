package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an IP rights analyst. Return a JSON with summary, validation, and verdict.`

const instruction = `Analyze the following file for potential copyright, patent, or trademark issues. Return JSON with summary, validation, and verdict.`

// SystemPrompt returns the static system instruction sent with every unit.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt wraps a unit's text in the fixed analysis instruction.
func BuildPrompt(u Unit) string {
	var b strings.Builder
	b.WriteString(instruction)
	fmt.Fprintf(&b, "\n\n### File: %s\n\n", u.Label)
	b.WriteString(u.Text)
	return b.String()
}
