package postgres

import (
	"BackOffice/internal/core/domain"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStepJournalRepository_Append_ListByRun_Roundtrip(t *testing.T) {
	// 1. Setup
	repo := NewStepJournalRepository(testDB)
	ctx := context.Background()
	runID := uuid.NewString()
	defer cleanupRun(t, runID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	transitions := []domain.StepTransition{
		{RunID: runID, RunKind: domain.RunKindProcess, RunName: "customer_deposit", StepID: "validate_payment", StepIndex: 0, Status: domain.StepRunning, Attempt: 1, OccurredAt: now},
		{RunID: runID, RunKind: domain.RunKindProcess, RunName: "customer_deposit", StepID: "validate_payment", StepIndex: 0, Status: domain.StepCompleted, Attempt: 1, OccurredAt: now.Add(time.Millisecond)},
		{RunID: runID, RunKind: domain.RunKindProcess, RunName: "customer_deposit", StepID: "process_payment", StepIndex: 1, Status: domain.StepFailed, Attempt: 1, Error: "HIGH_RISK_PAYMENT: too large", OccurredAt: now.Add(2 * time.Millisecond)},
	}

	// 2. Run Append
	for _, tr := range transitions {
		if err := repo.Append(ctx, tr); err != nil {
			t.Fatalf("Failed to append transition: %v", err)
		}
	}

	// 3. Run ListByRun
	got, err := repo.ListByRun(ctx, runID)
	if err != nil {
		t.Fatalf("Failed to list transitions: %v", err)
	}

	// 4. Verify
	if len(got) != len(transitions) {
		t.Fatalf("ListByRun: got %d transitions, want %d", len(got), len(transitions))
	}
	for i := range transitions {
		want := transitions[i]
		if got[i].StepID != want.StepID || got[i].Status != want.Status || got[i].Error != want.Error {
			t.Errorf("transition %d mismatch: got %+v, want %+v", i, got[i], want)
		}
		if !got[i].OccurredAt.Equal(want.OccurredAt) {
			t.Errorf("transition %d time mismatch: got %v, want %v", i, got[i].OccurredAt, want.OccurredAt)
		}
	}
}

func TestStepJournalRepository_ListByRun_Unknown(t *testing.T) {
	repo := NewStepJournalRepository(testDB)

	got, err := repo.ListByRun(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no transitions, got %d", len(got))
	}
}
