package ollama

func buildClassificationPrompt(text string) string {
	const maxSnippet = 4000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You are a document classifier.
Return strict JSON object with keys:
category (string), tags (array of strings), confidence (number from 0 to 1), summary (string).
No markdown, no extra keys.

Document:
` + snippet
}
