package ollama

// Stage prompts feed at most maxSnippet characters of the document; vendor
// models degrade sharply past that, and classification-style judgements do
// not improve with more context.
const maxSnippet = 4000

func snippetOf(text string) string {
	if len(text) > maxSnippet {
		return text[:maxSnippet]
	}
	return text
}

func buildClassificationPrompt(text string) string {
	return `You are a document classifier.
Return strict JSON object with keys:
category (string), confidence (number from 0 to 1), alternatives (array of objects with keys category and confidence, ranked best first).
No markdown, no extra keys.

Document:
` + snippetOf(text)
}

func buildSummaryPrompt(text string) string {
	return `Summarize the document below in 2-4 sentences.
Plain text only, no preamble, no markdown.

Document:
` + snippetOf(text)
}

func buildEntitiesPrompt(text string) string {
	return `Extract named entities from the document below.
Return strict JSON object mapping entity type (PERSON, ORG, DATE, LOCATION, ...)
to an array of mention strings in order of appearance. Omit empty types.
No markdown, no extra keys.

Document:
` + snippetOf(text)
}

func buildSentimentPrompt(text string) string {
	return `Judge the overall sentiment of the document below.
Return strict JSON object with keys:
label (one of "positive", "negative", "neutral") and confidence (number from 0 to 1).
No markdown, no extra keys.

Document:
` + snippetOf(text)
}
