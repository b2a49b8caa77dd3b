package budget_test

import (
	"testing"

	"github.com/arkveil/ctxkernel/pkg/budget"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
)

type fixedCounter struct{ cost int }

func (f fixedCounter) Count(string) int                              { return f.cost }
func (f fixedCounter) CountMessages([]tokencount.Message) int { return 0 }

func TestManager_CreateBudget(t *testing.T) {
	m := budget.New(budget.Config{
		Window:             8000,
		OutputReserveRatio: 0.25,
		Counter:            fixedCounter{cost: 300},
	})

	b := m.CreateBudget("system prompt text")
	if b.ReservedOutput != 2000 {
		t.Fatalf("expected reserved_output 2000, got %d", b.ReservedOutput)
	}
	if b.SystemPrompt != 300 {
		t.Fatalf("expected system_prompt 300, got %d", b.SystemPrompt)
	}
	if b.Available != 5700 {
		t.Fatalf("expected available 5700, got %d", b.Available)
	}
}

func TestManager_CreateBudgetNegativeAvailableClampsToZero(t *testing.T) {
	m := budget.New(budget.Config{
		Window:             100,
		OutputReserveRatio: 0.5,
		Counter:            fixedCounter{cost: 1000},
	})
	b := m.CreateBudget("huge system prompt")
	if b.Available != 0 {
		t.Fatalf("expected available clamped to 0, got %d", b.Available)
	}
}

func TestManager_AllocateForSourcesRenormalizesSubset(t *testing.T) {
	// Spec scenario 5: window 8000, reserve 0.25, system prompt 300 ->
	// available 5700. Subset {L1_recent, L2_important, retrieval} ratios
	// {0.26, 0.16, 0.20} normalize from 0.62 to 1.0.
	m := budget.New(budget.Config{
		Window:             8000,
		OutputReserveRatio: 0.25,
		Counter:            fixedCounter{cost: 300},
		Ratios: budget.RatioMap{
			"L1_recent":    0.26,
			"L2_important": 0.16,
			"retrieval":    0.20,
			"tools":        0.10,
		},
	})

	b := m.CreateBudget("sys")
	allocations := m.AllocateForSources(b, []string{"L1_recent", "L2_important", "retrieval"})

	if len(allocations) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocations))
	}

	sum := 0
	for _, v := range allocations {
		sum += v
	}
	if diff := sum - 5700; diff < -3 || diff > 3 {
		t.Fatalf("expected allocations to sum to 5700 +/- 3, got %d", sum)
	}
}

func TestManager_AllocateSumsWithinRoundingSlack(t *testing.T) {
	m := budget.New(budget.Config{
		Window:             8000,
		OutputReserveRatio: 0.25,
		Counter:            fixedCounter{cost: 300},
		Ratios:             budget.DefaultRatios[budget.PhaseEarly],
	})
	b := m.CreateBudget("sys")
	allocations := m.Allocate(b)

	sum := 0
	for _, v := range allocations {
		sum += v
	}
	if diff := sum - b.Available; diff < -len(allocations) || diff > len(allocations) {
		t.Fatalf("expected sum within |sources| of available: sum=%d available=%d", sum, b.Available)
	}
}

func TestAdaptiveManager_UpdatePhaseSwitchesTemplate(t *testing.T) {
	a := budget.NewAdaptive(budget.AdaptiveConfig{
		Config: budget.Config{Window: 8000, Counter: fixedCounter{cost: 10}},
	})
	if a.Phase() != budget.PhaseEarly {
		t.Fatalf("expected initial phase early, got %s", a.Phase())
	}

	a.UpdatePhase(5, 10) // 50% -> middle
	if a.Phase() != budget.PhaseMiddle {
		t.Fatalf("expected phase middle at 50%%, got %s", a.Phase())
	}

	a.UpdatePhase(8, 10) // 80% -> late
	if a.Phase() != budget.PhaseLate {
		t.Fatalf("expected phase late at 80%%, got %s", a.Phase())
	}
}

func TestAdaptiveManager_UpdatePhaseIdempotentForSameArgs(t *testing.T) {
	a := budget.NewAdaptive(budget.AdaptiveConfig{
		Config: budget.Config{Window: 8000, Counter: fixedCounter{cost: 10}},
	})
	a.UpdatePhase(9, 10)
	before := a.Phase()

	a.UpdatePhase(9, 10) // repeat of the same args: must be a no-op
	if a.Phase() != before {
		t.Fatalf("expected repeating the same (iteration, max) to be a no-op")
	}
}
