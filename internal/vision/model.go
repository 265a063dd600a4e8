package vision

// Board types as normalized from the model's stage-1 answer.
const (
	BoardVoting = "voting"
	BoardNotes  = "notes"
	BoardHybrid = "hybrid"
)

// StructureResult is the stage-1 output: what kind of board this is
// and, for matrices, which headers frame it.
type StructureResult struct {
	BoardType     string   `json:"board_type"`
	RowHeaders    []string `json:"row_headers"`
	ColumnHeaders []string `json:"column_headers"`
	Legend        []string `json:"legend"`
}

// IsMatrix reports whether stage 2 should count intersections.
func (s *StructureResult) IsMatrix() bool {
	return len(s.RowHeaders) > 0 && len(s.ColumnHeaders) > 0
}

// VoteEntry is one counted intersection of the voting matrix.
type VoteEntry struct {
	Row   string `json:"row"`
	Col   string `json:"col"`
	Count int    `json:"count"`
}

// Note is one transcribed sticky note.
type Note struct {
	Text    string `json:"text"`
	Section string `json:"section"`
}

// ExtractionResult is the stage-2 output and the terminal result of
// the pipeline. Either section may be empty depending on the board.
type ExtractionResult struct {
	VotingData []VoteEntry `json:"voting_data"`
	Notes      []Note      `json:"notes"`
}
