package service

import (
	"testing"

	"github.com/forgo/craftlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		action  Action
		role    model.Role
		from    model.EngagementStatus
		wantTo  model.EngagementStatus
		wantErr error
	}{
		{"craftsman accepts pending", ActionAccept, model.RoleCraftsman, model.EngagementStatusPending, model.EngagementStatusAccepted, nil},
		{"craftsman rejects pending", ActionReject, model.RoleCraftsman, model.EngagementStatusPending, model.EngagementStatusRejected, nil},
		{"client cancels pending", ActionCancel, model.RoleClient, model.EngagementStatusPending, model.EngagementStatusCancelled, nil},
		{"client cancels accepted", ActionCancel, model.RoleClient, model.EngagementStatusAccepted, model.EngagementStatusCancelled, nil},
		{"craftsman completes accepted", ActionComplete, model.RoleCraftsman, model.EngagementStatusAccepted, model.EngagementStatusCompleted, nil},
		{"client rates completed", ActionRate, model.RoleClient, model.EngagementStatusCompleted, model.EngagementStatusCompleted, nil},

		{"client cannot accept", ActionAccept, model.RoleClient, model.EngagementStatusPending, "", ErrActionNotPermitted},
		{"craftsman cannot cancel", ActionCancel, model.RoleCraftsman, model.EngagementStatusPending, "", ErrActionNotPermitted},
		{"craftsman cannot edit", ActionEdit, model.RoleCraftsman, model.EngagementStatusPending, "", ErrActionNotPermitted},
		{"client cannot complete", ActionComplete, model.RoleClient, model.EngagementStatusAccepted, "", ErrActionNotPermitted},

		{"complete from pending", ActionComplete, model.RoleCraftsman, model.EngagementStatusPending, "", ErrInvalidTransition},
		{"accept accepted", ActionAccept, model.RoleCraftsman, model.EngagementStatusAccepted, "", ErrInvalidTransition},
		{"cancel completed", ActionCancel, model.RoleClient, model.EngagementStatusCompleted, "", ErrInvalidTransition},
		{"rate accepted", ActionRate, model.RoleClient, model.EngagementStatusAccepted, "", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveTransition(tt.action, tt.role, tt.from)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTo, got.To)
		})
	}
}

func TestTransitions_NothingLeavesTerminalStates(t *testing.T) {
	t.Parallel()

	for _, tr := range Transitions() {
		if tr.Action == ActionRate {
			continue
		}
		assert.False(t, tr.From.IsTerminal(), "%s leaves terminal state %s", tr.Action, tr.From)
	}

	for _, from := range []model.EngagementStatus{model.EngagementStatusRejected, model.EngagementStatusCompleted, model.EngagementStatusCancelled} {
		for _, a := range []Action{ActionAccept, ActionReject, ActionComplete} {
			_, err := resolveTransition(a, model.RoleCraftsman, from)
			assert.Error(t, err)
		}
		_, err := resolveTransition(ActionCancel, model.RoleClient, from)
		assert.Error(t, err)
	}
}

func TestTransitions_ReturnsCopy(t *testing.T) {
	t.Parallel()

	rows := Transitions()
	rows[0].To = model.EngagementStatusCancelled

	assert.Equal(t, model.EngagementStatusAccepted, Transitions()[0].To)
}

func TestActionForStatus(t *testing.T) {
	t.Parallel()

	a, ok := ActionForStatus(model.EngagementStatusCompleted)
	assert.True(t, ok)
	assert.Equal(t, ActionComplete, a)

	_, ok = ActionForStatus(model.EngagementStatusPending)
	assert.False(t, ok)
}
