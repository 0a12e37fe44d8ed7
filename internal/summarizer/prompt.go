package summarizer

import "fmt"

// Rough English ratio used only to phrase the length target for the model.
const wordsPerToken = 0.75

func systemPrompt(minTokens, maxTokens int) string {
	return fmt.Sprintf(`Summarize the document below.

Rules:
- Length: between %d and %d tokens (roughly %d to %d words).
- Keep the main ideas and critical context (dates, numbers, names, decisions).
- Drop repetition; the input may be a concatenation of partial summaries with overlapping content.
- Neutral tone, plain prose, no headings or bullet lists.
- Write in the same language as the input.
- Output only the summary.`,
		minTokens,
		maxTokens,
		int(float64(minTokens)*wordsPerToken),
		int(float64(maxTokens)*wordsPerToken),
	)
}
