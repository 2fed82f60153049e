// Package jobs loads the jobs manifest and turns its entries into
// periodic callbacks that run external commands.
package jobs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes Go duration strings ("30s", "5m") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Job is one manifest entry: a named command to run on a fixed spacing.
type Job struct {
	// Name identifies the job in logs and metrics.
	Name string `yaml:"name"`
	// Command is the executable to run.
	Command string `yaml:"command"`
	// Args are passed to the command verbatim.
	Args []string `yaml:"args"`
	// Every is the spacing between runs.
	Every Duration `yaml:"every"`
	// Immediate requests one run right away instead of waiting out the
	// first spacing.
	Immediate bool `yaml:"immediate"`
	// Timeout bounds a single run (0 = no bound).
	Timeout Duration `yaml:"timeout"`
}

// Manifest is the top-level jobs file structure.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// Parse decodes a manifest from raw YAML and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing jobs manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads and parses a manifest file.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading jobs manifest: %w", err)
	}
	return Parse(data)
}

func (m *Manifest) validate() error {
	seen := make(map[string]struct{}, len(m.Jobs))
	for i, job := range m.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if _, ok := seen[job.Name]; ok {
			return fmt.Errorf("job %q: duplicate name", job.Name)
		}
		seen[job.Name] = struct{}{}
		if job.Command == "" {
			return fmt.Errorf("job %q: command is required", job.Name)
		}
		if job.Every <= 0 {
			return fmt.Errorf("job %q: every must be greater than zero", job.Name)
		}
		if job.Timeout < 0 {
			return fmt.Errorf("job %q: timeout must be non-negative", job.Name)
		}
	}
	return nil
}

// Find returns the job with the given name, if present.
func (m *Manifest) Find(name string) (Job, bool) {
	for _, job := range m.Jobs {
		if job.Name == name {
			return job, true
		}
	}
	return Job{}, false
}
