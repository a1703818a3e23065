package ollama

import (
	"strings"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

// classifierSnippetLimit bounds how much document text goes into the
// classification prompt; the opening section of a clinical document
// carries the type signal, and small local models degrade on long input.
const classifierSnippetLimit = 4000

func buildClassificationPrompt(text string) string {
	if len(text) > classifierSnippetLimit {
		text = text[:classifierSnippetLimit]
	}

	var b strings.Builder
	b.WriteString("You are a medical document classifier.\n")
	b.WriteString("Return a strict JSON object with keys:\n")
	b.WriteString("type (one of: " + documentTypeList() + "),\n")
	b.WriteString("confidence (number from 0 to 1),\n")
	b.WriteString("summary (one or two sentences of plain text),\n")
	b.WriteString("document_date (the YYYY-MM-DD date of the clinical event if the text states one, otherwise empty string).\n")
	b.WriteString("No markdown, no extra keys.\n\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

func documentTypeList() string {
	names := make([]string, len(domain.DocumentTypes))
	for i, t := range domain.DocumentTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
