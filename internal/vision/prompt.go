package vision

import (
	"fmt"
	"strings"
)

// BuildStructurePrompt is the fixed stage-1 instruction: classify the
// board and enumerate its headers and legend.
func BuildStructurePrompt() string {
	return `
You are analyzing a photo of a physical workshop board.

Your task:
1. Classify it as a "voting" matrix (dots/pins placed at row/column
   intersections), a "notes" wall (handwritten sticky notes), or a
   "hybrid" of both.
2. If it is a matrix, enumerate the Row Headers (categories) and the
   Column Headers (options/sentiment).
3. Identify any legend (e.g. "blue = dev, red = biz").

Rules:
- Output MUST be valid JSON.
- Output MUST contain ONLY JSON. No markdown, no explanations.

Required JSON schema:
{
  "board_type": "voting | notes | hybrid",
  "row_headers": ["string"],
  "column_headers": ["string"],
  "legend": ["string"]
}

If the board has no matrix, return empty arrays for the headers.
`
}

// BuildExtractionPrompt builds the stage-2 instruction. The detected
// structure is interpolated verbatim so the model counts against the
// exact headers found in stage 1.
func BuildExtractionPrompt(structure *StructureResult) string {
	var context string
	if structure.IsMatrix() {
		context = fmt.Sprintf(`This board is a %s matrix.
ROWS found: %s
COLUMNS found: %s
CRITICAL TASK: look at EVERY intersection (row x column) and COUNT the
dots/pins there. Unmarked intersections count as 0.`,
			structure.BoardType,
			strings.Join(structure.RowHeaders, ", "),
			strings.Join(structure.ColumnHeaders, ", "),
		)
	} else {
		context = fmt.Sprintf(`This board is a %s board with no matrix.
Focus strictly on reading handwritten sticky notes and grouping them
by the section of the board they sit in.`, structure.BoardType)
	}

	if len(structure.Legend) > 0 {
		context += "\nLEGEND: " + strings.Join(structure.Legend, ", ")
	}

	return context + `

Rules:
- Output MUST be valid JSON.
- Output MUST contain ONLY JSON. No markdown, no explanations.
- voting_data: one entry per matrix cell; dot counts are exact integers.
- notes: every legible handwritten note, with the section it belongs to.
- If a section does not apply, return it as an empty array.

Required JSON schema:
{
  "voting_data": [
    {"row": "string", "col": "string", "count": number}
  ],
  "notes": [
    {"text": "string", "section": "string"}
  ]
}
`
}
