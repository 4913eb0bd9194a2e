package service

import (
	"time"

	"github.com/forgo/craftlink/internal/model"
)

// Default lifecycle windows
const (
	DefaultEditWindow       = 5 * time.Minute
	DefaultVisibilityWindow = 10 * time.Minute
)

// WindowPolicy decides edit and visibility windows, anchored on CreatedOn
type WindowPolicy struct {
	EditWindow       time.Duration
	VisibilityWindow time.Duration
}

// DefaultWindowPolicy returns the 5 minute edit / 10 minute visibility policy
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{EditWindow: DefaultEditWindow, VisibilityWindow: DefaultVisibilityWindow}
}

func (p WindowPolicy) withDefaults() WindowPolicy {
	if p.EditWindow <= 0 {
		p.EditWindow = DefaultEditWindow
	}
	if p.VisibilityWindow <= 0 {
		p.VisibilityWindow = DefaultVisibilityWindow
	}
	return p
}

// CanEdit reports whether content edits and client deletion are allowed at now.
// The boundary itself (exactly EditWindow after creation) is still allowed.
func (p WindowPolicy) CanEdit(e *model.Engagement, now time.Time) bool {
	if e == nil || e.Status != model.EngagementStatusPending || !e.CanEdit {
		return false
	}
	return now.Sub(e.CreatedOn) <= p.EditWindow
}

// VisibilityExpired reports whether the reconciler should reveal the engagement
func (p WindowPolicy) VisibilityExpired(e *model.Engagement, now time.Time) bool {
	if e == nil || e.Status != model.EngagementStatusPending || !e.CanEdit || e.VisibleToCraftsman {
		return false
	}
	return now.Sub(e.CreatedOn) > p.VisibilityWindow
}

// VisibilityCutoff returns the creation time before which hidden engagements expire
func (p WindowPolicy) VisibilityCutoff(now time.Time) time.Time {
	return now.Add(-p.VisibilityWindow)
}
