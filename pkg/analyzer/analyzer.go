// Package analyzer judges whether one query result is enough to answer the
// user's question. The judgment is rule based and deterministic: identical
// inputs always produce the identical Analysis.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/parallaxlabs/erpquery/pkg/executor"
)

// Anomaly tags raised by the analyzer.
const (
	AnomalyExecutionError        = "execution_error"
	AnomalyEmptyResultUnexpected = "empty_result_unexpected"
	AnomalyRankingTruncationRisk = "ranking_truncation_risk"
	AnomalyNullProliferation     = "null_proliferation"
	AnomalyOutOfRangeValue       = "out_of_range_value"
)

// Analysis is the structured sufficiency judgment for one execution result.
type Analysis struct {
	Completeness      float64  `json:"completeness"`
	IsSufficient      bool     `json:"is_sufficient"`
	NeedsMoreData     bool     `json:"needs_more_data"`
	Anomalies         []string `json:"anomalies,omitempty"`
	ReasoningTags     []string `json:"reasoning_tags,omitempty"`
	SuggestedFollowup string   `json:"suggested_followup,omitempty"`
}

// Config tunes the analyzer. The zero value is usable after Validate.
type Config struct {
	// CompletenessThreshold is the minimum completeness for a result to be
	// judged sufficient. Defaults to 0.7.
	CompletenessThreshold float64
	// LevelMin/LevelMax bound valid level codes for out-of-range detection.
	LevelMin, LevelMax int
	// NullRatioLimit is the tolerated fraction of NULL cells in columns
	// that look non-nullable. Defaults to 0.3.
	NullRatioLimit float64
}

func (cfg *Config) Validate() error {
	if cfg.CompletenessThreshold == 0 {
		cfg.CompletenessThreshold = 0.7
	}
	if cfg.CompletenessThreshold < 0 || cfg.CompletenessThreshold > 1 {
		return fmt.Errorf("completeness threshold must be in [0,1], got %v", cfg.CompletenessThreshold)
	}
	if cfg.LevelMin == 0 && cfg.LevelMax == 0 {
		cfg.LevelMin, cfg.LevelMax = 1, 15
	}
	if cfg.NullRatioLimit == 0 {
		cfg.NullRatioLimit = 0.3
	}
	return nil
}

// Analyzer implements the sufficiency judgment.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg}, nil
}

var (
	limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)
	// Tie handling in the SQL itself: window ranks or FETCH ... WITH TIES.
	tieHandlingRe = regexp.MustCompile(`(?i)\b(RANK|DENSE_RANK)\s*\(|WITH\s+TIES`)
	// Columns whose values should never be negative.
	nonNegativeColRe = regexp.MustCompile(`(?i)(salary|amount|price|total|cost|pay|wage|bonus)`)
	levelColRe       = regexp.MustCompile(`(?i)^(level|grade|tier)(_?(code|id))?$`)
)

// Analyze judges one execution result against the original question and the
// SQL that produced it. Pure function: no I/O, no randomness.
func (a *Analyzer) Analyze(question, sql string, res executor.Result) Analysis {
	if !res.Success {
		return Analysis{
			Completeness:  0,
			IsSufficient:  false,
			NeedsMoreData: true,
			Anomalies:     []string{AnomalyExecutionError},
			ReasoningTags: []string{"query_failed"},
		}
	}

	intent := ClassifyIntent(question)

	if res.Count == 0 {
		return a.analyzeEmpty(intent)
	}

	anomalies := map[string]bool{}
	tags := []string{"intent:" + string(intent)}
	completeness := 1.0
	forceContinue := false
	followup := ""

	// NULL density in columns that do not look optional.
	if ratio := worstNullRatio(res); ratio > a.cfg.NullRatioLimit {
		anomalies[AnomalyNullProliferation] = true
		tags = append(tags, "null_ratio_exceeded")
		completeness -= 0.3
	}

	// Domain checks: negative money, level codes outside the valid range.
	if a.hasOutOfRangeValues(res) {
		anomalies[AnomalyOutOfRangeValue] = true
		tags = append(tags, "value_out_of_domain")
		completeness -= 0.2
	}

	// A LIMIT-bounded ranking answer may have cut a tie at the boundary.
	// Force another iteration unless the row count already exceeds the
	// requested N, which means ties were expanded by the query itself.
	if intent == IntentRanking {
		n := RequestedN(question)
		if m := limitRe.FindStringSubmatch(sql); m != nil && !tieHandlingRe.MatchString(sql) {
			limit, _ := strconv.Atoi(m[1])
			if n == 0 {
				n = limit
			}
			if res.Count <= n {
				anomalies[AnomalyRankingTruncationRisk] = true
				tags = append(tags, "limit_without_tie_check")
				forceContinue = true
				followup = fmt.Sprintf(
					"The ranking may be cut mid-tie: the query used LIMIT %d without handling ties. "+
						"Re-run it without LIMIT, or use RANK()/DENSE_RANK() so rows tied at position %d are included.",
					limit, n)
			} else {
				tags = append(tags, "ties_already_expanded")
			}
		}
	}

	if res.Truncated {
		tags = append(tags, "result_truncated")
		completeness -= 0.1
	}

	if completeness < 0 {
		completeness = 0
	}

	sufficient := !forceContinue && completeness >= a.cfg.CompletenessThreshold

	return Analysis{
		Completeness:      completeness,
		IsSufficient:      sufficient,
		NeedsMoreData:     forceContinue || !sufficient,
		Anomalies:         sortedKeys(anomalies),
		ReasoningTags:     sortedCopy(tags),
		SuggestedFollowup: followup,
	}
}

// analyzeEmpty judges a zero-row result. For existence questions the empty
// set is itself the answer.
func (a *Analyzer) analyzeEmpty(intent Intent) Analysis {
	if intent == IntentExistence || intent == IntentAnomalyDetection {
		return Analysis{
			Completeness:  1,
			IsSufficient:  true,
			NeedsMoreData: false,
			ReasoningTags: []string{"empty_result_is_negative_finding", "intent:" + string(intent)},
		}
	}
	return Analysis{
		Completeness:  0.3,
		IsSufficient:  false,
		NeedsMoreData: true,
		Anomalies:     []string{AnomalyEmptyResultUnexpected},
		ReasoningTags: []string{"intent:" + string(intent), "unexpected_empty_result"},
		SuggestedFollowup: "The query returned no rows but the question expects data. " +
			"Check filter values, date ranges, and join conditions against the schema.",
	}
}

// worstNullRatio returns the highest fraction of NULL cells across columns
// that do not look intentionally optional.
func worstNullRatio(res executor.Result) float64 {
	worst := 0.0
	for _, col := range res.Columns {
		if looksNullable(col) {
			continue
		}
		nulls := 0
		for _, row := range res.Rows {
			if row[col] == nil {
				nulls++
			}
		}
		if len(res.Rows) > 0 {
			ratio := float64(nulls) / float64(len(res.Rows))
			if ratio > worst {
				worst = ratio
			}
		}
	}
	return worst
}

// looksNullable reports whether a column name suggests optional data, such
// as leave_date or end_date.
func looksNullable(col string) bool {
	lower := strings.ToLower(col)
	return strings.Contains(lower, "leave") ||
		strings.Contains(lower, "end_") ||
		strings.HasSuffix(lower, "_until") ||
		strings.Contains(lower, "optional") ||
		strings.Contains(lower, "note")
}

func (a *Analyzer) hasOutOfRangeValues(res executor.Result) bool {
	for _, col := range res.Columns {
		checkNegative := nonNegativeColRe.MatchString(col)
		checkLevel := levelColRe.MatchString(col)
		if !checkNegative && !checkLevel {
			continue
		}
		for _, row := range res.Rows {
			v, ok := asFloat(row[col])
			if !ok {
				continue
			}
			if checkNegative && v < 0 {
				return true
			}
			if checkLevel && (v < float64(a.cfg.LevelMin) || v > float64(a.cfg.LevelMax)) {
				return true
			}
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
