package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ritzau/codegraph/pkg/model"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *model.AnalysisResult, _ Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// ParseJSON reads a result written by WriteJSON.
func ParseJSON(rd io.Reader) (*model.AnalysisResult, error) {
	var r model.AnalysisResult
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode json report: %w", err)
	}
	return &r, nil
}
