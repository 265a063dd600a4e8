package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ProgressFunc receives stage transitions so callers can render
// progress without the pipeline touching any UI state.
type ProgressFunc func(stage int, message string)

const (
	stageStructure  = "structure detection"
	stageExtraction = "data extraction"
)

// Pipeline runs the two-stage analysis: detect the board structure,
// then extract its data with the structure as context. The stages are
// strictly sequential and fail fast; a stage failure aborts the run.
type Pipeline struct {
	client Client
}

func NewPipeline(client Client) *Pipeline {
	return &Pipeline{client: client}
}

// Analyze executes both stages against the given image.
func (p *Pipeline) Analyze(
	ctx context.Context,
	image []byte,
	mimeType string,
	progress ProgressFunc,
) (*StructureResult, *ExtractionResult, error) {

	report := func(stage int, msg string) {
		if progress != nil {
			progress(stage, msg)
		}
	}

	// ── Stage 1: structure detection ──
	report(1, "analyzing board layout and legends")

	raw, err := p.client.GenerateJSON(ctx, BuildStructurePrompt(), image, mimeType)
	if err != nil {
		return nil, nil, &StageError{Stage: 1, Name: stageStructure, Err: err}
	}

	structure, err := parseStructure(raw)
	if err != nil {
		return nil, nil, &StageError{Stage: 1, Name: stageStructure, Err: err}
	}

	// ── Stage 2: data extraction ──
	report(2, fmt.Sprintf("detected %s board, extracting data", structure.BoardType))

	raw, err = p.client.GenerateJSON(ctx, BuildExtractionPrompt(structure), image, mimeType)
	if err != nil {
		return nil, nil, &StageError{Stage: 2, Name: stageExtraction, Err: err}
	}

	extraction, err := parseExtraction(raw)
	if err != nil {
		return nil, nil, &StageError{Stage: 2, Name: stageExtraction, Err: err}
	}

	report(2, "analysis complete")
	return structure, extraction, nil
}

func parseStructure(raw string) (*StructureResult, error) {
	var s StructureResult
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("invalid stage json: %w", err)
	}

	normalized, err := normalizeBoardType(s.BoardType)
	if err != nil {
		return nil, err
	}
	s.BoardType = normalized

	return &s, nil
}

func parseExtraction(raw string) (*ExtractionResult, error) {
	var e ExtractionResult
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("invalid stage json: %w", err)
	}

	for i, v := range e.VotingData {
		if v.Count < 0 {
			return nil, &SchemaError{
				Field:  fmt.Sprintf("voting_data[%d].count", i),
				Reason: "negative dot count",
			}
		}
	}

	return &e, nil
}

// normalizeBoardType maps the model's free-form classification onto
// the three known board types.
func normalizeBoardType(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case t == "":
		return "", &SchemaError{Field: "board_type", Reason: "missing"}
	case strings.Contains(t, "hybrid"):
		return BoardHybrid, nil
	case strings.Contains(t, "vot") || strings.Contains(t, "dot"):
		return BoardVoting, nil
	case strings.Contains(t, "note") || strings.Contains(t, "sticky"):
		return BoardNotes, nil
	}
	return "", &SchemaError{Field: "board_type", Reason: "unknown value " + raw}
}
