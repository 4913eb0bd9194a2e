package model

import (
	"strings"
	"time"
)

// EngagementStatus is the lifecycle state of an engagement
type EngagementStatus string

const (
	EngagementStatusPending   EngagementStatus = "pending"
	EngagementStatusAccepted  EngagementStatus = "accepted"
	EngagementStatusRejected  EngagementStatus = "rejected"
	EngagementStatusCompleted EngagementStatus = "completed"
	EngagementStatusCancelled EngagementStatus = "cancelled"
)

// IsTerminal returns true if no further status transition is possible
func (s EngagementStatus) IsTerminal() bool {
	return s == EngagementStatusRejected || s == EngagementStatusCompleted || s == EngagementStatusCancelled
}

// IsValid returns true for known statuses
func (s EngagementStatus) IsValid() bool {
	switch s {
	case EngagementStatusPending,
		EngagementStatusAccepted,
		EngagementStatusRejected,
		EngagementStatusCompleted,
		EngagementStatusCancelled:
		return true
	}
	return false
}

// EngagementKind discriminates the payload shape of an engagement
type EngagementKind string

const (
	// EngagementKindBooking has a single date and time
	EngagementKindBooking EngagementKind = "booking"
	// EngagementKindRequest has an ordered list of preferred slots
	EngagementKindRequest EngagementKind = "request"
)

// TimeSlot is one preferred date/time window
type TimeSlot struct {
	Date string `json:"date"`         // YYYY-MM-DD
	From string `json:"from"`         // HH:MM
	To   string `json:"to,omitempty"` // HH:MM
}

// Schedule holds either a booking date/time or preferred slots for a request
type Schedule struct {
	Date           string     `json:"date,omitempty"` // YYYY-MM-DD
	Time           string     `json:"time,omitempty"` // HH:MM
	PreferredSlots []TimeSlot `json:"preferred_slots,omitempty"`
}

// EngagementRating is the client's rating of a completed engagement
type EngagementRating struct {
	Overall       int       `json:"overall"`
	Quality       *int      `json:"quality,omitempty"`
	Punctuality   *int      `json:"punctuality,omitempty"`
	Communication *int      `json:"communication,omitempty"`
	ReviewText    *string   `json:"review_text,omitempty"`
	RatedOn       time.Time `json:"rated_on"`
}

// Engagement is a client/craftsman service transaction
type Engagement struct {
	ID                 string            `json:"id"`
	Kind               EngagementKind    `json:"kind"`
	ClientID           string            `json:"client_id"`
	CraftsmanID        string            `json:"craftsman_id"`
	Schedule           Schedule          `json:"schedule"`
	Location           string            `json:"location,omitempty"`
	Description        string            `json:"description"`
	Images             []string          `json:"images,omitempty"`
	Status             EngagementStatus  `json:"status"`
	CanEdit            bool              `json:"can_edit"`
	VisibleToCraftsman bool              `json:"visible_to_craftsman"`
	Price              *float64          `json:"price,omitempty"`
	Notes              *string           `json:"notes,omitempty"`
	Rating             *EngagementRating `json:"rating,omitempty"`
	CreatedOn          time.Time         `json:"created_on"`
	UpdatedOn          time.Time         `json:"updated_on"`
}

// IsRated returns true once a rating has been attached
func (e *Engagement) IsRated() bool {
	return e.Rating != nil
}

// EngagementPrecondition is the expected current state of a record for a conditional write.
// Nil pointers are not checked.
type EngagementPrecondition struct {
	Status             EngagementStatus
	CanEdit            *bool
	VisibleToCraftsman *bool
	Unrated            bool
}

// Matches reports whether the engagement currently satisfies the precondition
func (p EngagementPrecondition) Matches(e *Engagement) bool {
	if e == nil {
		return false
	}
	if p.Status != "" && e.Status != p.Status {
		return false
	}
	if p.CanEdit != nil && e.CanEdit != *p.CanEdit {
		return false
	}
	if p.VisibleToCraftsman != nil && e.VisibleToCraftsman != *p.VisibleToCraftsman {
		return false
	}
	if p.Unrated && e.Rating != nil {
		return false
	}
	return true
}

// EngagementPatch holds the fields a conditional write sets. Nil fields are left unchanged.
type EngagementPatch struct {
	Status             *EngagementStatus
	CanEdit            *bool
	VisibleToCraftsman *bool
	Schedule           *Schedule
	Location           *string
	Description        *string
	Images             *[]string
	Price              *float64
	Notes              *string
	Rating             *EngagementRating
	UpdatedOn          time.Time
}

// Apply copies the patch onto an engagement
func (p EngagementPatch) Apply(e *Engagement) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.CanEdit != nil {
		e.CanEdit = *p.CanEdit
	}
	if p.VisibleToCraftsman != nil {
		e.VisibleToCraftsman = *p.VisibleToCraftsman
	}
	if p.Schedule != nil {
		e.Schedule = *p.Schedule
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Images != nil {
		e.Images = *p.Images
	}
	if p.Price != nil {
		e.Price = p.Price
	}
	if p.Notes != nil {
		e.Notes = p.Notes
	}
	if p.Rating != nil {
		e.Rating = p.Rating
	}
	if !p.UpdatedOn.IsZero() {
		e.UpdatedOn = p.UpdatedOn
	}
}

// EngagementFilter selects engagements for listings
type EngagementFilter struct {
	ClientID    string
	CraftsmanID string
	Statuses    []EngagementStatus
	// VisibleOnly hides pending engagements the craftsman cannot see yet.
	// Anything that has left pending is listed regardless of the flag.
	VisibleOnly bool
	Limit       int
	Offset      int
}

// Engagement constraints
const (
	MaxDescriptionLength = 2000
	MaxLocationLength    = 300
	MaxNotesLength       = 1000
	MaxReviewTextLength  = 1000
	MaxImagesPerRequest  = 10
	MaxPreferredSlots    = 5
	MinRatingValue       = 1
	MaxRatingValue       = 5
)

// CreateEngagementRequest represents a request to book a craftsman
type CreateEngagementRequest struct {
	CraftsmanID string   `json:"craftsman_id"`
	Kind        string   `json:"kind,omitempty"` // booking (default) or request
	Schedule    Schedule `json:"schedule"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description"`
	Images      []string `json:"images,omitempty"`
}

// EngagementKindOrDefault returns the requested kind, defaulting to booking
func (r *CreateEngagementRequest) EngagementKindOrDefault() EngagementKind {
	if strings.TrimSpace(r.Kind) == "" {
		return EngagementKindBooking
	}
	return EngagementKind(r.Kind)
}

// Validate checks if the create request is valid
func (r *CreateEngagementRequest) Validate() []FieldError {
	var errors []FieldError

	if strings.TrimSpace(r.CraftsmanID) == "" {
		errors = append(errors, FieldError{Field: "craftsman_id", Message: "craftsman_id is required"})
	}
	if strings.TrimSpace(r.Description) == "" {
		errors = append(errors, FieldError{Field: "description", Message: "description is required"})
	} else if len(r.Description) > MaxDescriptionLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 2000 characters or less"})
	}
	if len(r.Location) > MaxLocationLength {
		errors = append(errors, FieldError{Field: "location", Message: "location must be 300 characters or less"})
	}
	if len(r.Images) > MaxImagesPerRequest {
		errors = append(errors, FieldError{Field: "images", Message: "at most 10 images are allowed"})
	}

	switch r.EngagementKindOrDefault() {
	case EngagementKindBooking:
		errors = append(errors, validateBookingSchedule(r.Schedule)...)
	case EngagementKindRequest:
		errors = append(errors, validatePreferredSlots(r.Schedule.PreferredSlots)...)
	default:
		errors = append(errors, FieldError{Field: "kind", Message: "kind must be 'booking' or 'request'"})
	}

	return errors
}

// EditEngagementRequest represents a content edit by the client
type EditEngagementRequest struct {
	Schedule    *Schedule `json:"schedule,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
	Images      *[]string `json:"images,omitempty"`
}

// IsEmpty returns true if no field is set
func (r *EditEngagementRequest) IsEmpty() bool {
	return r.Schedule == nil && r.Location == nil && r.Description == nil && r.Images == nil
}

// Validate checks if the edit request is valid for the given engagement kind
func (r *EditEngagementRequest) Validate(kind EngagementKind) []FieldError {
	var errors []FieldError

	if r.IsEmpty() {
		errors = append(errors, FieldError{Field: "body", Message: "at least one field must be provided"})
		return errors
	}
	if r.Description != nil {
		if strings.TrimSpace(*r.Description) == "" {
			errors = append(errors, FieldError{Field: "description", Message: "description cannot be empty"})
		} else if len(*r.Description) > MaxDescriptionLength {
			errors = append(errors, FieldError{Field: "description", Message: "description must be 2000 characters or less"})
		}
	}
	if r.Location != nil && len(*r.Location) > MaxLocationLength {
		errors = append(errors, FieldError{Field: "location", Message: "location must be 300 characters or less"})
	}
	if r.Images != nil && len(*r.Images) > MaxImagesPerRequest {
		errors = append(errors, FieldError{Field: "images", Message: "at most 10 images are allowed"})
	}
	if r.Schedule != nil {
		if kind == EngagementKindRequest {
			errors = append(errors, validatePreferredSlots(r.Schedule.PreferredSlots)...)
		} else {
			errors = append(errors, validateBookingSchedule(*r.Schedule)...)
		}
	}

	return errors
}

// SetStatusRequest represents a status change
type SetStatusRequest struct {
	Status string   `json:"status"`
	Price  *float64 `json:"price,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

// Validate checks if the status request is valid
func (r *SetStatusRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Status == "" {
		errors = append(errors, FieldError{Field: "status", Message: "status is required"})
	} else if !EngagementStatus(r.Status).IsValid() {
		errors = append(errors, FieldError{Field: "status", Message: "unknown status"})
	}
	if r.Price != nil && *r.Price < 0 {
		errors = append(errors, FieldError{Field: "price", Message: "price cannot be negative"})
	}
	if r.Notes != nil && len(*r.Notes) > MaxNotesLength {
		errors = append(errors, FieldError{Field: "notes", Message: "notes must be 1000 characters or less"})
	}
	if EngagementStatus(r.Status) != EngagementStatusAccepted && (r.Price != nil || r.Notes != nil) {
		errors = append(errors, FieldError{Field: "status", Message: "price and notes can only be set on acceptance"})
	}

	return errors
}

// AttachRatingRequest represents the client's rating of a completed engagement
type AttachRatingRequest struct {
	Overall       int     `json:"overall"`
	Quality       *int    `json:"quality,omitempty"`
	Punctuality   *int    `json:"punctuality,omitempty"`
	Communication *int    `json:"communication,omitempty"`
	ReviewText    *string `json:"review_text,omitempty"`
}

// Validate checks if the rating request is valid
func (r *AttachRatingRequest) Validate() []FieldError {
	var errors []FieldError

	if !isRatingValue(r.Overall) {
		errors = append(errors, FieldError{Field: "overall", Message: "overall must be between 1 and 5"})
	}
	for field, v := range map[string]*int{
		"quality":       r.Quality,
		"punctuality":   r.Punctuality,
		"communication": r.Communication,
	} {
		if v != nil && !isRatingValue(*v) {
			errors = append(errors, FieldError{Field: field, Message: field + " must be between 1 and 5"})
		}
	}
	if r.ReviewText != nil && len(*r.ReviewText) > MaxReviewTextLength {
		errors = append(errors, FieldError{Field: "review_text", Message: "review_text must be 1000 characters or less"})
	}

	return errors
}

func isRatingValue(v int) bool {
	return v >= MinRatingValue && v <= MaxRatingValue
}

func validateBookingSchedule(s Schedule) []FieldError {
	var errors []FieldError
	if s.Date == "" {
		errors = append(errors, FieldError{Field: "schedule.date", Message: "date is required"})
	} else if _, err := time.Parse(time.DateOnly, s.Date); err != nil {
		errors = append(errors, FieldError{Field: "schedule.date", Message: "date must be YYYY-MM-DD"})
	}
	if s.Time == "" {
		errors = append(errors, FieldError{Field: "schedule.time", Message: "time is required"})
	} else if _, err := time.Parse("15:04", s.Time); err != nil {
		errors = append(errors, FieldError{Field: "schedule.time", Message: "time must be HH:MM"})
	}
	if len(s.PreferredSlots) > 0 {
		errors = append(errors, FieldError{Field: "schedule.preferred_slots", Message: "bookings take a single date and time"})
	}
	return errors
}

func validatePreferredSlots(slots []TimeSlot) []FieldError {
	var errors []FieldError
	if len(slots) == 0 {
		return append(errors, FieldError{Field: "schedule.preferred_slots", Message: "at least one preferred slot is required"})
	}
	if len(slots) > MaxPreferredSlots {
		return append(errors, FieldError{Field: "schedule.preferred_slots", Message: "at most 5 preferred slots are allowed"})
	}
	for _, slot := range slots {
		if _, err := time.Parse(time.DateOnly, slot.Date); err != nil {
			errors = append(errors, FieldError{Field: "schedule.preferred_slots", Message: "slot date must be YYYY-MM-DD"})
			break
		}
		from, err := time.Parse("15:04", slot.From)
		if err != nil {
			errors = append(errors, FieldError{Field: "schedule.preferred_slots", Message: "slot from must be HH:MM"})
			break
		}
		if slot.To != "" {
			to, err := time.Parse("15:04", slot.To)
			if err != nil || !to.After(from) {
				errors = append(errors, FieldError{Field: "schedule.preferred_slots", Message: "slot to must be after from"})
				break
			}
		}
	}
	return errors
}
