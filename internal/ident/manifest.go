package ident

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrManifestMismatch = errors.New("ident: registration order differs from manifest")

// Manifest pins the documented registration order of each group. Peers built
// from different code agree on ids only if both match the same manifest.
type Manifest struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadManifest loads a manifest YAML file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// ManifestOf snapshots the live registration order of r.
func ManifestOf(r *Registry) *Manifest {
	m := &Manifest{Groups: make(map[string][]string)}
	for _, name := range r.Groups() {
		types := r.Types(name)
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		m.Groups[name] = names
	}
	return m
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Verify checks every group listed in the manifest against the registry. Groups
// the manifest does not mention are not checked.
func (m *Manifest) Verify(r *Registry) error {
	var problems []string
	for name, want := range m.Groups {
		got := r.Types(name)
		if len(got) != len(want) {
			problems = append(problems, fmt.Sprintf("%q has %d types, manifest lists %d", name, len(got), len(want)))
			continue
		}
		for i, t := range got {
			if t.String() != want[i] {
				problems = append(problems, fmt.Sprintf("%q #%d is %s, manifest says %s", name, i, t, want[i]))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrManifestMismatch, strings.Join(problems, "; "))
	}
	return nil
}
