package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		question string
		want     Intent
	}{
		{"How many employees joined in 2024?", IntentStatistical},
		{"What is the average salary by department?", IntentAggregation},
		{"Who are the top 10 earners?", IntentRanking},
		{"Show the 5 highest paid engineers", IntentRanking},
		{"List all employees in the sales department", IntentEnumeration},
		{"Compare this year's payroll versus last year's", IntentComparison},
		{"Has anyone ever received two payments in one month?", IntentExistence},
		{"Are there any employees without a contract?", IntentExistence},
		{"Which employees are missing a salary record for March?", IntentAnomalyDetection},
		{"What is the salary growth over time?", IntentTrend},
		{"Tell me about the company", IntentUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyIntent(tt.question), "question: %s", tt.question)
	}
}

func TestRequestedN(t *testing.T) {
	assert.Equal(t, 10, RequestedN("Who are the top 10 earners?"))
	assert.Equal(t, 5, RequestedN("Show the highest 5 salaries"))
	assert.Equal(t, 3, RequestedN("the 3 largest departments by headcount"))
	assert.Equal(t, 7, RequestedN("the 7 best paid engineers"))
	assert.Zero(t, RequestedN("What is the average salary?"))
	assert.Zero(t, RequestedN("List all employees"))
}

// A number that is not attached to the ranking phrasing is not a count;
// years in particular must never be read as N.
func TestRequestedN_IgnoresYearsAndStrayNumbers(t *testing.T) {
	assert.Zero(t, RequestedN("Who were the highest earners in 2024?"))
	assert.Zero(t, RequestedN("Who had the largest bonus in March 2023?"))
	assert.Zero(t, RequestedN("Which department paid the most overtime since 2020?"))
	assert.Zero(t, RequestedN("Who earned the most in Q3?"))

	// A count and a year can coexist; the attached number wins.
	assert.Equal(t, 10, RequestedN("Who were the top 10 earners in 2024?"))
	assert.Equal(t, 5, RequestedN("the 5 highest salaries paid during 2023"))
}
