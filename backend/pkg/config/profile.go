package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineSettings overrides analysis engine options. Nil fields keep the
// flavor default, so a profile only has to name what it changes.
type EngineSettings struct {
	EmbeddingDim  *int     `yaml:"embedding_dim" json:"embedding_dim,omitempty"`
	WalksPerNode  *int     `yaml:"walks_per_node" json:"walks_per_node,omitempty"`
	WalkLength    *int     `yaml:"walk_length" json:"walk_length,omitempty"`
	P             *float64 `yaml:"p" json:"p,omitempty"`
	Q             *float64 `yaml:"q" json:"q,omitempty"`
	TopK          *int     `yaml:"top_k" json:"top_k,omitempty"`
	MaxIterations *int     `yaml:"max_iterations" json:"max_iterations,omitempty"`
	Workers       *int     `yaml:"workers" json:"workers,omitempty"`
	Seed          *int64   `yaml:"seed" json:"seed,omitempty"`
}

// Profile is a YAML analysis profile with one section per analysis flavor
type Profile struct {
	Fraud   EngineSettings `yaml:"fraud"`
	Social  EngineSettings `yaml:"social"`
	Generic EngineSettings `yaml:"generic"`
}

// Section returns the settings for the named flavor. Unknown names get
// the generic section.
func (p *Profile) Section(flavor string) EngineSettings {
	if p == nil {
		return EngineSettings{}
	}
	switch flavor {
	case "fraud":
		return p.Fraud
	case "social":
		return p.Social
	default:
		return p.Generic
	}
}

// LoadProfile reads a profile from a YAML file. An empty path yields an
// empty profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open analysis profile: %w", err)
	}
	defer f.Close()

	return DecodeProfile(f)
}

// DecodeProfile decodes a YAML profile. Unknown keys are rejected so typos
// in option names surface instead of silently keeping defaults.
func DecodeProfile(r io.Reader) (*Profile, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var p Profile
	if err := decoder.Decode(&p); err != nil {
		if err == io.EOF {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("decode analysis profile: %w", err)
	}
	return &p, nil
}
