package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fraudgraph/backend/internal/accounts"
	"fraudgraph/backend/internal/analysis"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/pkg/config"
)

// engineFlags are the shared engine option flags. Only flags the user set
// override the profile.
type engineFlags struct {
	profile       string
	pretty        bool
	seed          int64
	topK          int
	dim           int
	walks         int
	length        int
	p             float64
	q             float64
	maxIterations int
	workers       int
}

func (f *engineFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.profile, "profile", os.Getenv("ANALYSIS_PROFILE"), "YAML analysis profile")
	fs.BoolVar(&f.pretty, "pretty", false, "indent JSON output")
	fs.Int64Var(&f.seed, "seed", constants.DefaultSeed, "random seed")
	fs.IntVar(&f.topK, "top-k", 0, "number of ranked links (flavor default when unset)")
	fs.IntVar(&f.dim, "dim", 32, "embedding dimension")
	fs.IntVar(&f.walks, "walks", 5, "walks per node")
	fs.IntVar(&f.length, "length", 40, "walk length")
	fs.Float64Var(&f.p, "p", 1.0, "return parameter")
	fs.Float64Var(&f.q, "q", 1.0, "in-out parameter")
	fs.IntVar(&f.maxIterations, "max-iterations", 10, "label propagation pass cap")
	fs.IntVar(&f.workers, "workers", 1, "walk sampling goroutines")
}

// options resolves flavor defaults, then the profile, then set flags
func (f *engineFlags) options(fs *pflag.FlagSet, flavor analysis.Flavor) (analysis.Options, error) {
	profile, err := config.LoadProfile(f.profile)
	if err != nil {
		return analysis.Options{}, err
	}

	var s config.EngineSettings
	if fs.Changed("seed") {
		s.Seed = &f.seed
	}
	if fs.Changed("top-k") {
		s.TopK = &f.topK
	}
	if fs.Changed("dim") {
		s.EmbeddingDim = &f.dim
	}
	if fs.Changed("walks") {
		s.WalksPerNode = &f.walks
	}
	if fs.Changed("length") {
		s.WalkLength = &f.length
	}
	if fs.Changed("p") {
		s.P = &f.p
	}
	if fs.Changed("q") {
		s.Q = &f.q
	}
	if fs.Changed("max-iterations") {
		s.MaxIterations = &f.maxIterations
	}
	if fs.Changed("workers") {
		s.Workers = &f.workers
	}

	return analysis.ProfileOptions(profile, flavor).WithSettings(s), nil
}

func (f *engineFlags) print(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	flags := &engineFlags{}

	root := &cobra.Command{
		Use:          "analyze",
		Short:        "Run graph analyses and print the result as JSON",
		SilenceUsage: true,
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(newFraudCmd(flags), newSocialCmd(flags), newFileCmd(flags), newAccountsCmd(flags))
	return root
}

func newFraudCmd(flags *engineFlags) *cobra.Command {
	var nodes, rings int
	cmd := &cobra.Command{
		Use:   "fraud",
		Short: "Generate a graph with planted fraud rings and analyze it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options(cmd.Flags(), analysis.FlavorFraud)
			if err != nil {
				return err
			}
			res, err := analysis.NewAnalyzer(nil).SimulateFraud(cmd.Context(), nodes, rings, opts)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&nodes, "nodes", constants.DefaultFraudNodes, "number of accounts")
	cmd.Flags().IntVar(&rings, "rings", constants.DefaultFraudRings, "number of fraud rings")
	return cmd
}

func newSocialCmd(flags *engineFlags) *cobra.Command {
	var nodes, influencers int
	cmd := &cobra.Command{
		Use:   "social",
		Short: "Generate a social network with influencers and analyze it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options(cmd.Flags(), analysis.FlavorSocial)
			if err != nil {
				return err
			}
			res, err := analysis.NewAnalyzer(nil).SimulateSocial(cmd.Context(), nodes, influencers, opts)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&nodes, "nodes", constants.DefaultSocialNodes, "number of members")
	cmd.Flags().IntVar(&influencers, "influencers", constants.DefaultSocialInfluencers, "number of influencers")
	return cmd
}

// uploadedGraph is the JSON graph format shared with POST /api/analyze
type uploadedGraph struct {
	Nodes []int        `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func newFileCmd(flags *engineFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file PATH",
		Short: "Analyze a graph from a JSON document or an edge list; '-' reads stdin",
		Long: `Analyze a graph read from PATH.

Files ending in .json hold {"nodes": [...], "edges": [{"source": a, "target": b}]}.
Anything else is read as an edge list with one "source target" pair per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd.Flags(), analysis.FlavorGeneric)
			if err != nil {
				return err
			}
			res, err := analysis.NewAnalyzer(nil).Analyze(cmd.Context(), g, opts)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
}

func newAccountsCmd(flags *engineFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts PATH",
		Short: "Score account records from CSV and analyze the accounts they link; '-' reads stdin",
		Long: `Analyze account records read from PATH.

The CSV needs a header row with name and email columns. Accounts sharing an
ip_address or phone_number are linked, scored and grouped into rings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []accounts.Record
			err := withInput(cmd.InOrStdin(), args[0], func(r io.Reader) error {
				var err error
				records, err = accounts.ReadCSV(r)
				return err
			})
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd.Flags(), analysis.FlavorFraud)
			if err != nil {
				return err
			}
			res, err := analysis.NewAnalyzer(nil).AnalyzeAccounts(cmd.Context(), records, opts)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
}

// withInput calls fn with stdin for "-" and with the opened file otherwise
func withInput(stdin io.Reader, path string, fn func(io.Reader) error) error {
	if path == "-" {
		return fn(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return fn(f)
}

func readGraph(stdin io.Reader, path string) (*graph.Graph, error) {
	var g *graph.Graph
	err := withInput(stdin, path, func(r io.Reader) error {
		var err error
		g, err = decodeGraph(r, path)
		return err
	})
	return g, err
}

func decodeGraph(r io.Reader, path string) (*graph.Graph, error) {
	if path == "-" || !strings.EqualFold(filepath.Ext(path), ".json") {
		return graph.ReadEdgeList(r)
	}

	var doc uploadedGraph
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return graph.FromEdges(doc.Nodes, doc.Edges)
}
