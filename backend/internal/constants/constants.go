package constants

// Service constants
const (
	// ServiceName labels logs, metrics and traces
	ServiceName = "fraudgraph"
	// MetricsNamespace prefixes every Prometheus metric
	MetricsNamespace = "fraudgraph"
)

// Synthetic graph sizes used when a request does not name them
const (
	DefaultFraudNodes        = 50
	DefaultFraudRings        = 3
	DefaultSocialNodes       = 60
	DefaultSocialInfluencers = 5
)

// Ranked link counts per analysis flavor
const (
	FraudTopK   = 15
	SocialTopK  = 20
	GenericTopK = 10
)

// DefaultSeed makes runs reproducible when no seed is supplied
const DefaultSeed int64 = 42

// Insight brief limits
const (
	// BriefCommunities is the number of largest communities described
	BriefCommunities = 5
	// BriefLinks is the number of top ranked links described
	BriefLinks = 5
)
