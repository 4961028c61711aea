// Package segment plans and executes the physical splitting of a classified
// document into component PDFs.
package segment

import (
	"encoding/json"
	"fmt"

	"github.com/local/bookpipe/internal/evidence"
)

const promptRules = `You are an expert PDF document analyst. Your task is to generate JSON containing pdftk command-line instructions to segment a book into its key components based on its bookmark data (Table of Contents).

**Your Task:**
Analyze in-depth the provided context bookmark data, secondary metadata and total page count to identify the physical page ranges for the following components:
- Title Page (Mandatory)
- Table of Contents (Mandatory)
- Each individual Chapter (Mandatory)
- Preface (If exists)
- Foreword (If exists)
- Dedication (If exists)
- Acknowledgments (If exists)
- Each individual Appendix (If exists)
- Glossary (If exists)
- Bibliography/References (If exists)

Bookmark objects carry "title", "level" and "page" keys. The "level" value, compared across the entire context, indicates the nesting depth; multiple objects sharing a level are semantically probable candidates for the expected components.

**Output Rules:**
1. Your entire output MUST be a single, valid JSON array of command objects. Do not include any text, code formatting ticks, or explanations outside of the JSON structure.
2. Each object in the array must have three string keys:
   - "component_name": A file-safe, descriptive name for the output PDF (e.g., "00_Table_of_Contents", "Chapter_01_Introduction", "Appendix_A_Data_Tables"). Use leading zeros for proper file sorting.
   - "pdftk_command": The exact pdftk command in the form "pdftk IN_FILE cat START-END output OUT_FILE". Use the placeholder "IN_FILE" for the input path and "OUT_FILE" for the output path.
   - "justification": A brief, single-sentence explanation of how you determined the page range from the bookmark titles and page numbers.
3. **Inferring Page Ranges:**
   - The end page of any component is the page number immediately preceding the start page of the *next* component in the outline.
   - The final component in the book ends at the total page count.
   - **Title Page:** This is almost always page 1.
   - **Copyright/Dedication:** These often follow the title page. You must infer their presence and length from the gap before the Table of Contents or Preface.
   - **Table of Contents:** Typically starts on a page titled "Contents" or similar and ends right before the first major section like "Introduction", "Preface", or "Chapter 1".
4. **BE CONSERVATIVE and ROBUST:**
   - If the bookmark data is ambiguous, sparse, or of poor quality, and you cannot confidently identify the required components, your output should be an EMPTY ARRAY [].
   - It is better to return an empty array than to guess and produce incorrect commands.`

// BuildPrompt renders the segmentation request from the authoritative
// outline, the secondary metadata list (nil when the secondary tool produced
// nothing) and the document's page count.
func BuildPrompt(path string, outline, secondary []evidence.OutlineEntry, totalPages int) (string, error) {
	outlineJSON, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode outline: %w", err)
	}
	secondaryJSON := []byte("null")
	if secondary != nil {
		secondaryJSON, err = json.MarshalIndent(secondary, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode secondary metadata: %w", err)
		}
	}

	return fmt.Sprintf(`%s

**Input PDF File Path (for use in commands):**
%s

**Total Pages in PDF:**
%d

**Bookmark Data (Table of Contents):**
`+"```json\n%s\n```"+`

**Secondary Metadata:**
`+"```json\n%s\n```",
		promptRules, path, totalPages, string(outlineJSON), string(secondaryJSON)), nil
}
