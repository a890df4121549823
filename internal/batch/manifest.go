package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"copytopoints/internal/config"
)

// Manifest lists the cook jobs of one batch run.
type Manifest struct {
	Workers int   `yaml:"workers"`
	Jobs    []Job `yaml:"jobs"`
}

// Job is one cook. Paths are relative to the manifest's directory.
type Job struct {
	Name   string        `yaml:"name"`
	Source string        `yaml:"source"`
	Target string        `yaml:"target"`
	Output string        `yaml:"output"`
	Params config.Params `yaml:"params"`
}

// LoadManifest reads a YAML manifest and makes its paths absolute.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("batch: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("batch: parse %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Source == "" || j.Target == "" || j.Output == "" {
			return Manifest{}, fmt.Errorf("batch: job %d (%s) needs source, target and output", i, j.Name)
		}
		j.Source = resolve(base, j.Source)
		j.Target = resolve(base, j.Target)
		j.Output = resolve(base, j.Output)
		if j.Name == "" {
			j.Name = filepath.Base(j.Output)
		}
	}
	return m, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ReportEntry represents one job in the written report.
type ReportEntry struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Output    string   `yaml:"output"`
	Success   bool     `yaml:"success"`
	Error     string   `yaml:"error,omitempty"`
	Copies    int      `yaml:"copies"`
	Warnings  []string `yaml:"warnings,omitempty"`
	ElapsedMS int64    `yaml:"elapsed_ms"`
}

// WriteReport writes the results as YAML.
func WriteReport(path string, results []Result) error {
	entries := make([]ReportEntry, len(results))
	for i, r := range results {
		entries[i] = ReportEntry{
			ID:        r.ID.String(),
			Name:      r.Name,
			Output:    r.Output,
			Success:   r.Success,
			Error:     r.Error,
			Copies:    r.Copies,
			Warnings:  r.Warnings,
			ElapsedMS: r.Elapsed.Milliseconds(),
		}
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Result holds the outcome of one job.
type Result struct {
	ID       uuid.UUID
	Name     string
	Output   string
	Success  bool
	Error    string
	Copies   int
	Warnings []string
	Elapsed  time.Duration
}
