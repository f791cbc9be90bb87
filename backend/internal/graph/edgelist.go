package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "fraudgraph/backend/pkg/errors"
)

// ReadEdgeList parses a whitespace separated edge list, one "source target"
// pair per line. Extra columns such as weights are ignored, as are blank
// lines and lines starting with '#'. A line holding a single id adds an
// isolated node.
func ReadEdgeList(r io.Reader) (*Graph, error) {
	g := New()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		ids := make([]int, 0, 2)
		for _, f := range fields[:min(2, len(fields))] {
			id, err := strconv.Atoi(f)
			if err != nil {
				return nil, apperrors.NewInvalidConfiguration("edge_list", fmt.Sprintf("line %d: %q is not an integer id", line, f))
			}
			ids = append(ids, id)
		}

		if len(ids) == 1 {
			g.AddNode(ids[0])
			continue
		}
		if err := g.AddEdge(ids[0], ids[1]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read edge list: %w", err)
	}
	return g, nil
}
