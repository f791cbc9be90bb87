package analysis

import (
	"fraudgraph/backend/internal/community"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/node2vec"
	"fraudgraph/backend/pkg/config"
	apperrors "fraudgraph/backend/pkg/errors"
)

// Flavor names an analysis variant
type Flavor string

const (
	FlavorFraud   Flavor = "fraud"
	FlavorSocial  Flavor = "social"
	FlavorGeneric Flavor = "generic"
)

// Options configures one analysis run. The embedded walk options are
// flattened into the same JSON object.
type Options struct {
	node2vec.Options
	TopK          int   `json:"top_k"`
	MaxIterations int   `json:"max_iterations"`
	Seed          int64 `json:"seed"`
}

// DefaultOptions returns the options for a flavor
func DefaultOptions(flavor Flavor) Options {
	opts := Options{
		Options:       node2vec.DefaultOptions(),
		TopK:          constants.GenericTopK,
		MaxIterations: community.DefaultMaxIterations,
		Seed:          constants.DefaultSeed,
	}
	switch flavor {
	case FlavorFraud:
		opts.TopK = constants.FraudTopK
	case FlavorSocial:
		opts.TopK = constants.SocialTopK
	}
	return opts
}

// Validate rejects options any stage would refuse
func (o Options) Validate() error {
	if err := o.Options.Validate(); err != nil {
		return err
	}
	if o.TopK < 0 {
		return apperrors.NewInvalidConfiguration("top_k", "must not be negative")
	}
	if o.MaxIterations < 0 {
		return apperrors.NewInvalidConfiguration("max_iterations", "must not be negative")
	}
	return nil
}

// WithSettings returns a copy of o with every set field of s applied
func (o Options) WithSettings(s config.EngineSettings) Options {
	if s.EmbeddingDim != nil {
		o.Dimensions = *s.EmbeddingDim
	}
	if s.WalksPerNode != nil {
		o.WalksPerNode = *s.WalksPerNode
	}
	if s.WalkLength != nil {
		o.WalkLength = *s.WalkLength
	}
	if s.P != nil {
		o.P = *s.P
	}
	if s.Q != nil {
		o.Q = *s.Q
	}
	if s.TopK != nil {
		o.TopK = *s.TopK
	}
	if s.MaxIterations != nil {
		o.MaxIterations = *s.MaxIterations
	}
	if s.Workers != nil {
		o.Workers = *s.Workers
	}
	if s.Seed != nil {
		o.Seed = *s.Seed
	}
	return o
}

// ProfileOptions returns the defaults for flavor overlaid with the
// matching section of p. A nil profile yields the defaults.
func ProfileOptions(p *config.Profile, flavor Flavor) Options {
	return DefaultOptions(flavor).WithSettings(p.Section(string(flavor)))
}
