package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/imagebatch/internal/engine"
)

// runReport is the YAML document written by --report.
type runReport struct {
	Version    string           `yaml:"version"`
	WrittenAt  time.Time        `yaml:"written_at"`
	Outcome    string           `yaml:"outcome"`
	Policy     string           `yaml:"policy"`
	Message    string           `yaml:"message"`
	Error      string           `yaml:"error,omitempty"`
	Candidates int              `yaml:"candidates"`
	Selected   int              `yaml:"selected"`
	Result     engine.RunResult `yaml:"result"`
}

func newRunReport(res engine.RunResult, selected, candidates int) runReport {
	r := runReport{
		Version:    Version,
		WrittenAt:  time.Now().UTC(),
		Outcome:    string(res.Outcome()),
		Policy:     res.Policy.String(),
		Message:    res.Message(selected),
		Candidates: candidates,
		Selected:   selected,
		Result:     res,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// writeReport writes the report atomically: readers see the old file or
// the complete new one.
func writeReport(path string, r runReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
