package model

import "time"

// Craftsman is the service provider side of an engagement.
// Profiles live elsewhere; only availability and the rating roll-up are kept here.
type Craftsman struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"display_name,omitempty"`
	Available       bool       `json:"available"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"review_count"`
	RatingUpdatedOn *time.Time `json:"rating_updated_on,omitempty"`
}

// CraftsmanRatingResponse is the public view of a craftsman's roll-up
type CraftsmanRatingResponse struct {
	CraftsmanID     string     `json:"craftsman_id"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"review_count"`
	RatingUpdatedOn *time.Time `json:"rating_updated_on,omitempty"`
}

// RatingResponse builds the public roll-up view
func (c *Craftsman) RatingResponse() CraftsmanRatingResponse {
	return CraftsmanRatingResponse{
		CraftsmanID:     c.ID,
		Rating:          c.Rating,
		ReviewCount:     c.ReviewCount,
		RatingUpdatedOn: c.RatingUpdatedOn,
	}
}
