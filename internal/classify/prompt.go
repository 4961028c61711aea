package classify

import (
	"encoding/json"
	"fmt"

	"github.com/local/bookpipe/internal/evidence"
)

const hierarchyDefinitions = `**Level 1: Simple Linear Monograph:** Flat chapter structure, minimal formatting changes.
**Level 2: Standard Hierarchical Textbook:** Consistent, deep hierarchy (e.g., 1.1, 1.1.1), predictable formatting.
**Level 3: Composite Edited Handbook/Collection:** Chapters by different authors; inconsistent internal structure per chapter.
**Level 4A: Hierarchical with Asymmetric Appendices:** A Level 2 book with large, structurally different back-matter (Appendices, Glossary).
**Level 4B: Modular Reference Collection:** A bundle of separate manuals (e.g., tutorial, API reference), not one book.
**Level 5: Degraded or Typographically Inferred Structure:** Lacks explicit metadata (bookmarks). Structure must be inferred from layout alone (font sizes, spacing).`

// BuildPrompt renders the classification request for one document from its
// collected evidence record.
func BuildPrompt(path string, rec *evidence.Record) (string, error) {
	evidenceJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}

	prompt := fmt.Sprintf(`Please act as an expert in computational document analysis. Your task is to classify the structural complexity of a book based on the evidence gathered by analysis scripts.

**Book File:**
%s

**Structural Complexity Hierarchy:**
%s

**Evidence Collected:**
`+"```json\n%s\n```"+`

**Analysis and Classification Task:**
Based *only* on the evidence provided, assign the book to the most appropriate structural complexity level from the hierarchy. Provide a single-line justification for your choice.

**Output Rules:**
Your entire output MUST be a single, valid JSON object with exactly two string keys. Do not include any text, code formatting ticks, or explanations outside of the JSON structure:
{"classification": "[Your chosen level, e.g., Level 2]", "justification": "[Your single-line justification]"}`,
		path, hierarchyDefinitions, string(evidenceJSON))

	return prompt, nil
}
