// Package actions implements the command layer over the undo log: user
// actions are applied through registered appliers, tracked in an applied log
// and an undone stack, and undone or reapplied as units.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// Action is a user command. A composite action groups sub-actions that apply,
// undo and redo together; its own Type only labels the group.
type Action struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Composite bool            `json:"composite,omitempty"`
	Subs      []Action        `json:"subActions,omitempty"`
}

// NewAction builds a simple action, JSON-encoding payload.
func NewAction(actionType string, payload any) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("failed to encode %s payload: %w", actionType, err)
	}
	return Action{Type: actionType, Payload: raw}, nil
}

// CreateCompositeAction groups subs under main. The appliers of subs run in
// order; main's applier is never invoked.
func CreateCompositeAction(main Action, subs ...Action) Action {
	main.Composite = true
	main.Subs = append([]Action(nil), subs...)
	return main
}

// Decode unmarshals the payload into v.
func (a Action) Decode(v any) error {
	if len(a.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(a.Payload, v)
}

// steps returns the actions whose appliers run for a.
func (a Action) steps() []Action {
	if a.Composite {
		return a.Subs
	}
	return []Action{a}
}

func (a Action) String() string {
	if a.Composite {
		return fmt.Sprintf("%s[%d]", a.Type, len(a.Subs))
	}
	return a.Type
}

// Result is what an applier returns. The callbacks are optional and are run
// by the Log after the entry is applied or undone.
type Result struct {
	Value     any
	PostApply func(ctx context.Context)
	PostUndo  func(ctx context.Context)
}

// ApplierFunc applies action. With validateOnly it must have no observable
// side effect; otherwise it must register the undo items needed to reverse
// the change.
type ApplierFunc func(ctx context.Context, validateOnly bool, action Action) (*Result, error)

// Entry is one slot of the applied log or the undone stack.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	UndoIDs   []undo.ID `json:"undoIds,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`

	// Callbacks are not persisted.
	postApply []func(context.Context)
	postUndo  []func(context.Context)
}

// List names one of the two sequences an EntryStore persists.
type List string

const (
	AppliedList List = "applied"
	UndoneList  List = "undone"
)

// EntryStore is the persistence capability the Log needs.
type EntryStore interface {
	// GetActionEntries returns the stored entries of list, in stored order.
	GetActionEntries(ctx context.Context, list List) ([]Entry, error)

	// PutActionEntries replaces the stored entries of list.
	PutActionEntries(ctx context.Context, list List, entries []Entry) error
}

// EventKind names an action log event.
type EventKind string

const (
	EventApplied   EventKind = "action-applied"
	EventUndone    EventKind = "action-undone"
	EventReapplied EventKind = "action-reapplied"
)

// Event is delivered to observers after an action is applied, undone or
// reapplied. For applies and reapplies Result is the applier's value; for an
// undo it is the []undo.ID that were reversed.
type Event struct {
	Kind   EventKind
	Action Action
	Result any
}

// Observer receives events synchronously.
type Observer func(Event)
