package assistant

import (
	"strings"
)

// BuildPrompt frames a driver question about a trip. The trip is
// identified by its current location.
func BuildPrompt(tripTitle, query string) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant for commercial truck drivers. You answer questions about a specific trip ")
	sb.WriteString("with context and precision.\n\n")

	sb.WriteString("Context:\n")
	sb.WriteString("- Trip: '")
	sb.WriteString(tripTitle)
	sb.WriteString("'\n\n")

	sb.WriteString("Answer the driver's question in detail, focusing on what is specific to this trip. ")
	sb.WriteString("Explain complex points plainly. Give direct, actionable steps for specific questions ")
	sb.WriteString("and an overview for broad ones. End longer answers with a one-sentence summary. ")
	sb.WriteString("If asked to translate, always provide the translation.\n\n")

	sb.WriteString(`Format the answer as HTML only, never markdown:
- <h1> for the main title
- <h2> for section titles and <h3> for subheadings
- <p> for paragraphs
Inline styles are allowed where they help readability. Never return an empty answer.`)
	sb.WriteString("\n\n")

	sb.WriteString("Driver question: '")
	sb.WriteString(query)
	sb.WriteString("'")

	return sb.String()
}

// CleanResponse removes the code fence models sometimes wrap HTML in.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```html")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
