package analyzer

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the lexical class of a business question. It steers how the
// analyzer judges a result, it never hard-constrains the model.
type Intent string

const (
	IntentStatistical      Intent = "statistical"
	IntentEnumeration      Intent = "enumeration"
	IntentComparison       Intent = "comparison"
	IntentAnomalyDetection Intent = "anomaly_detection"
	IntentRanking          Intent = "ranking"
	IntentTrend            Intent = "trend_analysis"
	IntentAggregation      Intent = "aggregation"
	IntentExistence        Intent = "existence"
	IntentUnknown          Intent = "unknown"
)

var (
	topNRe   = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)
	firstNRe = regexp.MustCompile(`(?i)\b(?:first|best|largest|highest|lowest)\s+(\d+)\b`)
	// "the 3 largest departments": the number must sit directly on ranking
	// phrasing, otherwise years and other literals read as a count.
	rankedNRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:highest|lowest|largest|smallest|biggest|best|most|top)\b`)
)

// intentKeywords maps each intent to the phrases that suggest it. First
// match in declaration order wins, so the more specific classes come first.
var intentKeywords = []struct {
	intent   Intent
	phrases  []string
	patterns []*regexp.Regexp
}{
	{
		intent: IntentExistence,
		phrases: []string{
			"has there ever been", "have there ever been", "does there exist",
			"is there any", "are there any", "has anyone", "did anyone",
			"whether there", "exists",
		},
	},
	{
		intent: IntentAnomalyDetection,
		phrases: []string{
			"missing", "overdue", "unpaid", "anomal", "gap", "skipped",
			"incomplete", "late payment", "in arrears", "never received",
		},
	},
	{
		intent:   IntentRanking,
		phrases:  []string{"top ", "highest", "lowest", "largest", "smallest", "best paid", "rank", "most "},
		patterns: []*regexp.Regexp{topNRe, firstNRe},
	},
	{
		intent: IntentTrend,
		phrases: []string{
			"trend", "over time", "growth", "increase", "decrease",
			"month over month", "year over year", "change in",
		},
	},
	{
		intent:  IntentComparison,
		phrases: []string{"compare", "versus", " vs ", "difference between", "higher than", "lower than"},
	},
	{
		intent:  IntentAggregation,
		phrases: []string{"per department", "by department", "per level", "by level", "for each", "per month", "by month", "grouped by"},
	},
	{
		intent:  IntentStatistical,
		phrases: []string{"how many", "how much", "average", "total", "sum of", "count of", "percentage", "proportion", "median"},
	},
	{
		intent:  IntentEnumeration,
		phrases: []string{"list ", "show all", "which employees", "who are", "enumerate", "give me all"},
	},
}

// ClassifyIntent classifies the question by keyword and pattern matching.
func ClassifyIntent(question string) Intent {
	lower := strings.ToLower(question)
	for _, def := range intentKeywords {
		for _, p := range def.phrases {
			if strings.Contains(lower, p) {
				return def.intent
			}
		}
		for _, re := range def.patterns {
			if re.MatchString(lower) {
				return def.intent
			}
		}
	}
	return IntentUnknown
}

// RequestedN extracts the N from a "top N" style question. The number must
// be attached to the ranking phrasing; a year or other stray literal in the
// question is not a count. Returns 0 when no explicit count is present.
func RequestedN(question string) int {
	for _, re := range []*regexp.Regexp{topNRe, firstNRe, rankedNRe} {
		if m := re.FindStringSubmatch(question); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}
