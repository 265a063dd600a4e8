package tabular

import (
	"bytes"
	"encoding/csv"

	"github.com/nickbanetti/vbs/internal/vision"
)

// NotesCSV serializes the flat note list. No synthetic index column.
func NotesCSV(notes []vision.Note) ([]byte, error) {
	if len(notes) == 0 {
		return nil, ErrNoData
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"text", "section"}); err != nil {
		return nil, err
	}
	for _, n := range notes {
		if err := w.Write([]string{n.Text, n.Section}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
