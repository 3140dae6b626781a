package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ritzau/codegraph/pkg/model"
)

// WriteYAML writes r as YAML with the same field names as the JSON format.
func WriteYAML(w io.Writer, r *model.AnalysisResult, _ Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}
