package accounts

import (
	"fmt"
	"math"
	"strings"
)

// Level buckets a risk score
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Score thresholds for the medium and high levels
const (
	MediumRiskScore = 40
	HighRiskScore   = 70
)

const maxScore = 100

// LevelFor buckets score
func LevelFor(score int) Level {
	switch {
	case score >= HighRiskScore:
		return LevelHigh
	case score >= MediumRiskScore:
		return LevelMedium
	default:
		return LevelLow
	}
}

// recommendations per level
var recommendations = map[Level]string{
	LevelHigh:   "Block or require additional verification",
	LevelMedium: "Monitor closely",
	LevelLow:    "Allow",
}

// Risk is the verdict on one account
type Risk struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	IP             string   `json:"ip"`
	Phone          string   `json:"phone"`
	Score          int      `json:"risk_score"`
	Level          Level    `json:"level"`
	Flagged        bool     `json:"flagged"`
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
}

func newRisk(id int, r Record, score float64, reasons []string) Risk {
	s := min(maxScore, int(math.Round(score)))
	level := LevelFor(s)
	if reasons == nil {
		reasons = []string{}
	}
	return Risk{
		ID:             id,
		Name:           r.Name,
		Email:          r.Email,
		IP:             r.IP,
		Phone:          r.Phone,
		Score:          s,
		Level:          level,
		Flagged:        level == LevelHigh,
		Recommendation: recommendations[level],
		Reasons:        reasons,
	}
}

// Score rates every record by how widely its identifiers are shared with
// the other records:
//
//	IP held by more than 3 accounts   +min(35, 5n)
//	IP held by 2 or 3 accounts        +10
//	phone held by more than 2         +min(30, 10n)
//	both IP and phone shared          +15
//
// Scores are capped at 100. Risks are returned in record order with ID set
// to the record position, matching the node ids of Graph.
func Score(records []Record) []Risk {
	ips := indexBy(records, byIP)
	phones := indexBy(records, byPhone)

	risks := make([]Risk, 0, len(records))
	for i, r := range records {
		var score float64
		var reasons []string

		ipUsers := ips.count(r.IP)
		switch {
		case ipUsers > 3:
			score += math.Min(35, float64(ipUsers*5))
			reasons = append(reasons, fmt.Sprintf("Shared IP with %d other users", ipUsers-1))
		case ipUsers > 1:
			score += 10
			reasons = append(reasons, fmt.Sprintf("IP shared with %d user(s)", ipUsers-1))
		}

		phoneUsers := phones.count(r.Phone)
		if phoneUsers > 2 {
			score += math.Min(30, float64(phoneUsers*10))
			reasons = append(reasons, fmt.Sprintf("Phone number used by %d accounts", phoneUsers))
		}

		if ipUsers > 1 && phoneUsers > 1 {
			score += 15
			reasons = append(reasons, "Multiple shared identifiers detected")
		}

		risks = append(risks, newRisk(i, r, score, reasons))
	}
	return risks
}

// reservedIPFragment appears in placeholder and unroutable addresses
const reservedIPFragment = "0.0.0"

// Assess scores a single account on its own, without other records to
// compare against:
//
//	placeholder IP (contains "0.0.0")  +20
//	no phone number                    +15
//	plus-addressed email               +10
func Assess(r Record) Risk {
	var score float64
	var reasons []string

	if strings.Contains(r.IP, reservedIPFragment) {
		score += 20
		reasons = append(reasons, "Placeholder IP address")
	}
	if !present(r.Phone) {
		score += 15
		reasons = append(reasons, "No phone number on file")
	}
	if strings.Contains(r.Email, "+") {
		score += 10
		reasons = append(reasons, "Plus-addressed email")
	}
	return newRisk(0, r, score, reasons)
}

// minRingSize is the smallest group of linked accounts reported as a ring
const minRingSize = 3

// Ring is a group of accounts tied together by a shared identifier
type Ring struct {
	ID          int      `json:"id"`
	Members     []int    `json:"members"`
	Names       []string `json:"names"`
	Size        int      `json:"size"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
}

const (
	describeIP    = "Coordinated IP addresses and accounts"
	describePhone = "Shared phone numbers across multiple accounts"
)

// Rings groups accounts around shared identifiers. Records are visited in
// order; each one not yet in a ring gathers every record sharing its IP or
// phone, itself included, and three or more of them form a ring. A record
// may appear in more than one ring. Ring ids start at 1. A ring is described
// as IP-coordinated when its anchor shares its IP address, otherwise as a
// shared phone ring.
//
// Confidence is min(0.99, 0.7 + mean member score / 500). risks must be
// the output of Score for the same records.
func Rings(records []Record, risks []Risk) []Ring {
	ips := indexBy(records, byIP)
	phones := indexBy(records, byPhone)

	var rings []Ring
	inRing := make([]bool, len(records))
	for i, r := range records {
		if inRing[i] {
			continue
		}

		members := mergeSorted(ips.holders(r.IP), phones.holders(r.Phone))
		if len(members) < minRingSize {
			continue
		}

		var total int
		names := make([]string, 0, len(members))
		for _, m := range members {
			inRing[m] = true
			total += risks[m].Score
			names = append(names, records[m].Name)
		}

		description := describePhone
		if len(ips.holders(r.IP)) > 1 {
			description = describeIP
		}

		rings = append(rings, Ring{
			ID:          len(rings) + 1,
			Members:     members,
			Names:       names,
			Size:        len(members),
			Confidence:  math.Min(0.99, 0.7+float64(total)/float64(len(members))/500),
			Description: description,
		})
	}
	if rings == nil {
		rings = []Ring{}
	}
	return rings
}

// RingLabels maps every ring member to its ring id. A member of several
// rings keeps the first.
func RingLabels(rings []Ring) map[int]int {
	labels := make(map[int]int)
	for _, ring := range rings {
		for _, m := range ring.Members {
			if _, ok := labels[m]; !ok {
				labels[m] = ring.ID
			}
		}
	}
	return labels
}

// Summary counts accounts per risk level
type Summary struct {
	TotalAccounts int     `json:"total_accounts"`
	HighRisk      int     `json:"high_risk_count"`
	MediumRisk    int     `json:"medium_risk_count"`
	LowRisk       int     `json:"low_risk_count"`
	RingsDetected int     `json:"rings_detected"`
	AvgRiskScore  float64 `json:"avg_risk_score"`
}

// Summarize aggregates risks and rings
func Summarize(risks []Risk, rings []Ring) Summary {
	s := Summary{TotalAccounts: len(risks), RingsDetected: len(rings)}
	var total int
	for _, r := range risks {
		total += r.Score
		switch r.Level {
		case LevelHigh:
			s.HighRisk++
		case LevelMedium:
			s.MediumRisk++
		default:
			s.LowRisk++
		}
	}
	if len(risks) > 0 {
		s.AvgRiskScore = float64(total) / float64(len(risks))
	}
	return s
}

// mergeSorted unions two ascending lists
func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
