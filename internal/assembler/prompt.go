package assembler

import "strings"

// Refusal is the exact reply the model must give when the context is insufficient.
const Refusal = "I don't have enough information in the provided documents to answer this question."

const promptTemplate = `You are an internal company assistant answering questions from retrieved documents.

Rules:
1. Answer ONLY with facts stated in the context below. Do not use outside knowledge.
2. If the context does not contain the answer, reply exactly: "{{refusal}}"
3. Format the answer as structured markdown: a short summary line, then bullet points or a table for details.
4. Refer to the chunk labels (for example [Chunk 2]) that support each point.

Context:
{{context}}
Question: {{query}}

Answer:`

// BuildPrompt embeds the packed context and the query into the instruction prompt.
func BuildPrompt(packedContext, query string) string {
	r := strings.NewReplacer(
		"{{refusal}}", Refusal,
		"{{context}}", packedContext,
		"{{query}}", strings.TrimSpace(query),
	)
	return r.Replace(promptTemplate)
}
