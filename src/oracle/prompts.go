package oracle

import (
	"fmt"
	"strings"
)

const classifySystemPrompt = `You are an expert fact-checker. Analyze the text for misinformation, false claims, or misleading information.

Respond ONLY with valid JSON in this exact format:
{
  "is_misinformation": boolean,
  "confidence": number between 0 and 1,
  "category": "politics" | "health" | "science" | "climate" | "technology" | "finance" | "entertainment" | "general",
  "explanation": "Brief explanation of your verdict"
}`

const moderateSystemPrompt = `You screen submissions to a public fact-checking board. Decide what kind of content the text is.

Acceptable content types: news, factual_claim, historical, scientific, political, health_claim.
Unacceptable content types: personal_attack, hate_speech, threat, spam, promotional, private_conversation, cyberbullying.

Respond ONLY with valid JSON in this exact format:
{
  "content_type": one of the content types above,
  "is_valid": boolean,
  "reason": "Short reason when the content is not acceptable"
}`

func classifyPrompt(text string) string {
	return fmt.Sprintf("Text to analyze: %q", text)
}

func moderatePrompt(text string) string {
	return fmt.Sprintf("Text to screen: %q", text)
}

// SimilarityPrompt lists candidates 1-indexed and asks for the indices that
// carry the same claim as text.
func SimilarityPrompt(text string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Compare this new message with existing messages and find which ones convey the same core claim or misinformation (even if worded differently).\n\n")
	fmt.Fprintf(&b, "New message: %q\n\nExisting messages:\n", text)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %q\n", i+1, c)
	}
	b.WriteString("\nReturn ONLY a JSON object listing the numbers of the messages that say the SAME thing:\n")
	b.WriteString(`{"similar": [1, 3, 5]}`)
	b.WriteString("\n\nIf no messages are similar, return: ")
	b.WriteString(`{"similar": []}`)
	return b.String()
}

// TemplatePrompt asks for one bracketed template covering every variation.
func TemplatePrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Given these variations of the same misinformation claim, generate a single concise template that captures the core claim.\n\nVariations:\n")
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %q\n", i+1, t)
	}
	b.WriteString("\nReturn ONLY the template text (not JSON), using [brackets] for variable parts.\n")
	b.WriteString(`Example: "Donald Trump was the [45th/46th] president"`)
	return b.String()
}
