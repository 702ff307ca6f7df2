// Package answer turns an analyzed query history into the final
// natural-language answer. Ranking questions get their listing recomputed
// here so a model draft can never truncate a tie at the boundary.
package answer

import (
	"fmt"
	"strings"

	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
)

// Input is everything the synthesizer needs from a finished session: the
// question, the model-proposed draft (may be empty), and the most recent
// sufficient execution result with the SQL that produced it.
type Input struct {
	Question string
	Draft    string
	SQL      string
	Result   *executor.Result
}

// Synthesize produces the final answer for an answered session.
func Synthesize(in Input) string {
	intent := analyzer.ClassifyIntent(in.Question)

	if in.Result != nil && in.Result.Success && in.Result.Count == 0 {
		return negativeFinding(in.Question, intent)
	}

	if intent == analyzer.IntentRanking && in.Result != nil && in.Result.Success {
		if listing := rankedListing(in); listing != "" {
			return listing
		}
	}

	if strings.TrimSpace(in.Draft) != "" {
		return strings.TrimSpace(in.Draft)
	}

	return literalPresentation(in)
}

// BestEffort produces the explicitly degraded answer for an exhausted
// session. The result, when present, is the best analyzed one available.
func BestEffort(in Input) string {
	const label = "Partial answer (iteration budget exhausted, not fully verified): "
	if in.Result == nil || !in.Result.Success {
		return "Unable to determine an answer within the iteration budget. " +
			"No query produced usable data for this question."
	}
	return label + Synthesize(Input{
		Question: in.Question,
		SQL:      in.SQL,
		Result:   in.Result,
	})
}

// negativeFinding states a zero-row outcome explicitly instead of treating
// it as a failure.
func negativeFinding(question string, intent analyzer.Intent) string {
	if intent == analyzer.IntentExistence || intent == analyzer.IntentAnomalyDetection {
		return fmt.Sprintf("No. No matching records were found for: %s", question)
	}
	return fmt.Sprintf("The query returned no matching records for: %s", question)
}

// literalPresentation renders the computed values with the SQL as
// provenance, asserting nothing beyond the returned rows.
func literalPresentation(in Input) string {
	if in.Result == nil || !in.Result.Success || in.Result.Count == 0 {
		return "No data is available to answer this question."
	}

	var sb strings.Builder
	if in.Result.Count == 1 {
		row := in.Result.Rows[0]
		parts := make([]string, 0, len(in.Result.Columns))
		for _, col := range in.Result.Columns {
			parts = append(parts, fmt.Sprintf("%s = %v", col, row[col]))
		}
		sb.WriteString(strings.Join(parts, ", "))
	} else {
		sb.WriteString(fmt.Sprintf("%d matching records:\n", in.Result.Count))
		display := min(in.Result.Count, 50)
		for i := 0; i < display && i < len(in.Result.Rows); i++ {
			parts := make([]string, 0, len(in.Result.Columns))
			for _, col := range in.Result.Columns {
				parts = append(parts, fmt.Sprintf("%v", in.Result.Rows[i][col]))
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.Join(parts, " | ")))
		}
		if in.Result.Count > display {
			sb.WriteString(fmt.Sprintf("... and %d more\n", in.Result.Count-display))
		}
	}
	if in.SQL != "" {
		sb.WriteString(fmt.Sprintf(" (computed by: %s)", in.SQL))
	}
	return sb.String()
}
