// Package accounts links account records through shared identifiers and
// scores each account for fraud risk.
//
// Accounts become graph nodes numbered by their position in the input.
// Two accounts are adjacent when they share an IP address or a phone
// number. The resulting graph feeds the fraud analysis, and the sharing
// pattern itself drives the per-account risk score and ring grouping.
package accounts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fraudgraph/backend/internal/graph"
	apperrors "fraudgraph/backend/pkg/errors"
)

// missingValue marks an identifier the source did not have
const missingValue = "N/A"

// CSV column names, matched case-insensitively
const (
	columnName  = "name"
	columnEmail = "email"
	columnIP    = "ip_address"
	columnPhone = "phone_number"
)

// Record is one account
type Record struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	IP    string `json:"ip_address"`
	Phone string `json:"phone_number"`
}

// Valid reports whether r has the fields every account needs
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Name) != "" && strings.TrimSpace(r.Email) != ""
}

// present reports whether an identifier can link accounts
func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, missingValue)
}

// ReadCSV reads accounts from CSV with a header row. Columns are found by
// name; unknown columns are ignored and short rows read as empty fields.
// Rows without a name or email are skipped.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewInvalidConfiguration("accounts", "CSV is empty")
	}
	if err != nil {
		return nil, apperrors.NewInvalidConfiguration("accounts", fmt.Sprintf("read header: %v", err))
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{columnName, columnEmail} {
		if _, ok := cols[required]; !ok {
			return nil, apperrors.NewInvalidConfiguration("accounts", fmt.Sprintf("header has no %q column", required))
		}
	}

	field := func(row []string, column string) string {
		i, ok := cols[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewInvalidConfiguration("accounts", err.Error())
		}

		rec := Record{
			Name:  field(row, columnName),
			Email: field(row, columnEmail),
			IP:    field(row, columnIP),
			Phone: field(row, columnPhone),
		}
		if !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, apperrors.NewInvalidConfiguration("accounts", "no rows with both a name and an email")
	}
	return records, nil
}

// identifierIndex groups record positions by one identifier. Keys keep
// first-seen order so everything built from it is deterministic.
type identifierIndex struct {
	order   []string
	members map[string][]int
}

func indexBy(records []Record, key func(Record) string) *identifierIndex {
	idx := &identifierIndex{members: make(map[string][]int)}
	for i, r := range records {
		v := key(r)
		if !present(v) {
			continue
		}
		v = strings.TrimSpace(v)
		if _, seen := idx.members[v]; !seen {
			idx.order = append(idx.order, v)
		}
		idx.members[v] = append(idx.members[v], i)
	}
	return idx
}

// holders returns the records sharing v, or nil when v is missing
func (idx *identifierIndex) holders(v string) []int {
	if !present(v) {
		return nil
	}
	return idx.members[strings.TrimSpace(v)]
}

// count is the number of records holding v, at least 1
func (idx *identifierIndex) count(v string) int {
	return max(1, len(idx.holders(v)))
}

func byIP(r Record) string    { return r.IP }
func byPhone(r Record) string { return r.Phone }

// Graph builds the shared-identifier graph: one node per record, numbered
// by position, and an edge between every two records with the same IP
// address or phone number. Missing identifiers ("" or "N/A") link nothing.
func Graph(records []Record) (*graph.Graph, error) {
	g := graph.New()
	for i := range records {
		g.AddNode(i)
	}

	for _, idx := range []*identifierIndex{indexBy(records, byIP), indexBy(records, byPhone)} {
		for _, v := range idx.order {
			group := idx.members[v]
			for i, a := range group {
				for _, b := range group[i+1:] {
					if err := g.AddEdge(a, b); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return g, nil
}
