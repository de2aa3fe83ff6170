package classifier

import (
	"testing"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(kind domain.ObligationKind, id string, confidence int, due *time.Time) domain.Candidate {
	return domain.Candidate{
		Obligation: domain.ObligationRef{Kind: kind, ID: id},
		Confidence: confidence,
		DueDate:    due,
	}
}

func day(d int) *time.Time {
	t := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDecide(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name       string
		candidates []domain.Candidate
		outcome    domain.Outcome
		chosen     string
	}{
		{
			name:    "no candidates",
			outcome: domain.OutcomeNoMatch,
		},
		{
			name:       "single exact candidate",
			candidates: []domain.Candidate{candidate(domain.KindInstallment, "c-1", 100, day(1))},
			outcome:    domain.OutcomeAutoMatched,
			chosen:     "c-1",
		},
		{
			name: "exact beats near",
			candidates: []domain.Candidate{
				candidate(domain.KindOrder, "o-1", 70, nil),
				candidate(domain.KindPawn, "p-1", 100, day(2)),
			},
			outcome: domain.OutcomeAutoMatched,
			chosen:  "p-1",
		},
		{
			name: "two equal orders are ambiguous",
			candidates: []domain.Candidate{
				candidate(domain.KindOrder, "o-1", 100, nil),
				candidate(domain.KindOrder, "o-2", 100, nil),
			},
			outcome: domain.OutcomeAmbiguous,
		},
		{
			name: "equal candidates across kinds are ambiguous",
			candidates: []domain.Candidate{
				candidate(domain.KindDeposit, "d-1", 100, day(9)),
				candidate(domain.KindInstallment, "c-1", 100, day(1)),
			},
			outcome: domain.OutcomeAmbiguous,
		},
		{
			name:       "below threshold needs review",
			candidates: []domain.Candidate{candidate(domain.KindInstallment, "c-1", 90, day(1))},
			outcome:    domain.OutcomeAmbiguous,
		},
		{
			name: "runner up inside band",
			candidates: []domain.Candidate{
				candidate(domain.KindInstallment, "c-1", 100, day(1)),
				candidate(domain.KindPawn, "p-1", 95, day(1)),
			},
			outcome: domain.OutcomeAmbiguous,
		},
		{
			name: "runner up just outside band",
			candidates: []domain.Candidate{
				candidate(domain.KindInstallment, "c-1", 100, day(1)),
				candidate(domain.KindPawn, "p-1", 94, day(1)),
			},
			outcome: domain.OutcomeAutoMatched,
			chosen:  "c-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := policy.Decide("pay-1", tt.candidates)
			assert.Equal(t, "pay-1", decision.PaymentID)
			assert.Equal(t, tt.outcome, decision.Outcome)
			assert.Len(t, decision.Candidates, len(tt.candidates))
			if tt.chosen == "" {
				assert.Nil(t, decision.Chosen)
				assert.Nil(t, decision.Binding)
				return
			}
			require.NotNil(t, decision.Chosen)
			assert.Equal(t, tt.chosen, decision.Chosen.Obligation.ID)
			assert.Equal(t, decision.Chosen.Obligation, *decision.Binding)
		})
	}
}

func TestRankTieBreaks(t *testing.T) {
	candidates := []domain.Candidate{
		candidate(domain.KindOrder, "o-b", 100, nil),
		candidate(domain.KindOrder, "o-a", 100, nil),
		candidate(domain.KindInstallment, "c-1", 100, day(1)),
		candidate(domain.KindPawn, "p-1", 100, day(20)),
		candidate(domain.KindDeposit, "d-1", 70, day(28)),
	}

	Rank(candidates)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Obligation.ID)
	}
	assert.Equal(t, []string{"p-1", "c-1", "o-a", "o-b", "d-1"}, ids)
}

func TestDecideDoesNotReorderInput(t *testing.T) {
	input := []domain.Candidate{
		candidate(domain.KindOrder, "o-1", 50, nil),
		candidate(domain.KindOrder, "o-2", 100, nil),
	}
	DefaultPolicy().Decide("pay-1", input)
	assert.Equal(t, "o-1", input[0].Obligation.ID)
}
