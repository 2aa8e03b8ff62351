// Package prompt formats retrieved translation examples and a query
// sentence into an instruction string for an external generator.
package prompt

import (
	"fmt"
	"strings"

	"github.com/verba-dev/verba/internal/memory"
)

var languageNames = map[string]string{
	"en": "English",
	"it": "Italian",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
}

// LanguageName returns the display name for an ISO 639-1 code, falling
// back to the upper-cased code itself.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// Build assembles the translation prompt. Examples are optional; when
// present they appear in the given order.
func Build(sourceLang, targetLang, query string, examples []memory.Example) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a translator from %s to %s.\n",
		LanguageName(sourceLang), LanguageName(targetLang))

	if len(examples) > 0 {
		b.WriteString("\nHere are some similar translation examples:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "- %q → %q\n", ex.Sentence, ex.Translation)
		}
	}

	fmt.Fprintf(&b, "\nNow translate: %q", query)
	return b.String()
}
