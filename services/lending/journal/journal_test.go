package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"shark/core/events"
	"shark/core/types"
	"shark/native/lending"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func borrowAction(sender string, at time.Time) events.LendingAction {
	return events.LendingAction{
		ID:     uuid.NewString(),
		Action: lending.ActionBorrow,
		Sender: sender,
		Attributes: []lending.Attribute{
			{Key: "action", Value: "borrow"},
			{Key: "borrowed_amount", Value: "6"},
		},
		Outcome:  events.OutcomeSuccess,
		At:       at,
		Duration: 3 * time.Millisecond,
	}
}

func TestJournalRecordsEmittedActions(t *testing.T) {
	j := openTestJournal(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	action := borrowAction("osmo1borrower", at)
	j.Emit(action)
	j.Emit(action)

	entry, err := j.Get(context.Background(), action.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Action != lending.ActionBorrow || entry.Outcome != events.OutcomeSuccess {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if !entry.At.Equal(at) || entry.DurationMS != 3 {
		t.Fatalf("unexpected timing %v %d", entry.At, entry.DurationMS)
	}
	attrs, err := entry.AttributeMap()
	if err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	if attrs["borrowed_amount"] != "6" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	entries, err := j.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected duplicate emit to be ignored, got %d entries", len(entries))
	}
}

func TestJournalListFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := j.Record(ctx, borrowAction("osmo1alice", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	failed := events.LendingAction{
		ID:      uuid.NewString(),
		Action:  lending.ActionSupplyFunds,
		Sender:  "osmo1bob",
		Funds:   types.Coins{types.NewCoin("uosmo", 10)},
		Outcome: "invalid_funds",
		Error:   "lending: invalid funds",
		At:      base.Add(10 * time.Minute),
	}
	if err := j.Record(ctx, failed); err != nil {
		t.Fatalf("record failed action: %v", err)
	}

	cases := []struct {
		filter Filter
		want   int
	}{
		{Filter{}, 4},
		{Filter{Sender: "osmo1alice"}, 3},
		{Filter{Action: lending.ActionSupplyFunds}, 1},
		{Filter{Outcome: "invalid_funds"}, 1},
		{Filter{Since: base.Add(90 * time.Second)}, 2},
		{Filter{Limit: 2}, 2},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			entries, err := j.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != tc.want {
				t.Fatalf("expected %d entries, got %d", tc.want, len(entries))
			}
		})
	}

	entries, err := j.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries[0].ID != failed.ID || entries[0].Funds != "10uosmo" {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
}

func TestJournalGetMissing(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
