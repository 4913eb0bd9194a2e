package service

import (
	"github.com/forgo/craftlink/internal/model"
)

// Action is a lifecycle operation an actor performs on an engagement
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionConfirm  Action = "confirm"
	ActionRate     Action = "rate"
)

// Guard names the extra condition a transition checks beyond its From status
type Guard string

const (
	GuardNone       Guard = ""
	GuardEditWindow Guard = "edit_window"
	GuardUnrated    Guard = "unrated"
)

// Transition is one row of the lifecycle table. An empty To on a status-preserving
// action keeps the current status; ActionDelete removes the record.
type Transition struct {
	From   model.EngagementStatus `json:"from" yaml:"from"`
	Action Action                 `json:"action" yaml:"action"`
	Actor  model.Role             `json:"actor" yaml:"actor"`
	Guard  Guard                  `json:"guard,omitempty" yaml:"guard,omitempty"`
	To     model.EngagementStatus `json:"to,omitempty" yaml:"to,omitempty"`
}

var transitionTable = []Transition{
	{From: model.EngagementStatusPending, Action: ActionAccept, Actor: model.RoleCraftsman, To: model.EngagementStatusAccepted},
	{From: model.EngagementStatusPending, Action: ActionReject, Actor: model.RoleCraftsman, To: model.EngagementStatusRejected},
	{From: model.EngagementStatusPending, Action: ActionCancel, Actor: model.RoleClient, To: model.EngagementStatusCancelled},
	{From: model.EngagementStatusAccepted, Action: ActionCancel, Actor: model.RoleClient, To: model.EngagementStatusCancelled},
	{From: model.EngagementStatusAccepted, Action: ActionComplete, Actor: model.RoleCraftsman, To: model.EngagementStatusCompleted},
	{From: model.EngagementStatusPending, Action: ActionEdit, Actor: model.RoleClient, Guard: GuardEditWindow, To: model.EngagementStatusPending},
	{From: model.EngagementStatusPending, Action: ActionDelete, Actor: model.RoleClient, Guard: GuardEditWindow},
	{From: model.EngagementStatusPending, Action: ActionConfirm, Actor: model.RoleClient, To: model.EngagementStatusPending},
	{From: model.EngagementStatusCompleted, Action: ActionRate, Actor: model.RoleClient, Guard: GuardUnrated, To: model.EngagementStatusCompleted},
}

// Transitions returns a copy of the lifecycle table
func Transitions() []Transition {
	out := make([]Transition, len(transitionTable))
	copy(out, transitionTable)
	return out
}

// ActionForStatus returns the action that moves an engagement into status
func ActionForStatus(s model.EngagementStatus) (Action, bool) {
	switch s {
	case model.EngagementStatusAccepted:
		return ActionAccept, true
	case model.EngagementStatusRejected:
		return ActionReject, true
	case model.EngagementStatusCancelled:
		return ActionCancel, true
	case model.EngagementStatusCompleted:
		return ActionComplete, true
	}
	return "", false
}

// resolveTransition finds the row for (action, role, from).
// Returns ErrActionNotPermitted when the role never performs the action and
// ErrInvalidTransition when it does, but not from the current status.
func resolveTransition(action Action, role model.Role, from model.EngagementStatus) (Transition, error) {
	permitted := false
	for _, t := range transitionTable {
		if t.Action != action || t.Actor != role {
			continue
		}
		permitted = true
		if t.From == from {
			return t, nil
		}
	}
	if !permitted {
		return Transition{}, ErrActionNotPermitted
	}
	return Transition{}, ErrInvalidTransition
}
