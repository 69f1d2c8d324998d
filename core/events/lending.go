package events

import (
	"strconv"
	"strings"
	"time"

	"shark/core/types"
	"shark/native/lending"
)

const (
	TypeLendingAction = "lending.action"

	OutcomeSuccess = "success"
)

// LendingAction records one executed action, successful or not.
type LendingAction struct {
	ID         string
	Action     string
	Sender     string
	Funds      types.Coins
	Attributes []lending.Attribute
	Messages   []lending.Message
	LockIDs    []string
	Outcome    string
	Error      string
	At         time.Time
	Duration   time.Duration
}

func (LendingAction) EventType() string { return TypeLendingAction }

// Succeeded reports whether the action committed.
func (e LendingAction) Succeeded() bool { return e.Outcome == OutcomeSuccess }

// Event flattens the action into a generic typed event. Response attributes
// are prefixed with "attr." so they cannot collide with the envelope.
func (e LendingAction) Event() *types.Event {
	attrs := map[string]string{
		"id":         e.ID,
		"action":     e.Action,
		"sender":     e.Sender,
		"funds":      e.Funds.String(),
		"outcome":    e.Outcome,
		"at":         e.At.UTC().Format(time.RFC3339Nano),
		"durationMs": strconv.FormatInt(e.Duration.Milliseconds(), 10),
		"messages":   strconv.Itoa(len(e.Messages)),
	}
	if e.Error != "" {
		attrs["error"] = e.Error
	}
	if len(e.LockIDs) > 0 {
		attrs["locks"] = strings.Join(e.LockIDs, ",")
	}
	for _, attr := range e.Attributes {
		attrs["attr."+attr.Key] = attr.Value
	}
	return &types.Event{Type: TypeLendingAction, Attributes: attrs}
}
