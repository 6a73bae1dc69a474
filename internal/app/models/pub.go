package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

// Pub is a row of the pubs table with its aggregated visit statistics.
type Pub struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Address       *string   `json:"address"`
	Location      geo.Point `json:"location"`
	VisitCount    int       `json:"visit_count"`
	AverageRating *float64  `json:"average_rating"`
}

// Visit marks that a pub was visited at VisitDate.
type Visit struct {
	ID        uuid.UUID `json:"id"`
	PubID     int64     `json:"pub_id"`
	VisitDate time.Time `json:"visit_date"`
	Rating    *int      `json:"rating,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	Author    *string   `json:"author,omitempty"`
}

// PubDetail is what clients render: the pub, whether it has been visited and its
// visit history, newest first.
type PubDetail struct {
	Pub
	IsVisited    bool    `json:"is_visited"`
	VisitHistory []Visit `json:"visit_history"`
}

// NewVisit is the payload for logging a visit.
type NewVisit struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
	Author  *string `json:"author"`
}

// BatchVisitRequest marks several pubs visited at once, e.g. after a crawl.
type BatchVisitRequest struct {
	PubIDs []int64 `json:"pubIds"`
}

// Progress counts visited pubs against all pubs.
type Progress struct {
	Visited int `json:"visited"`
	Total   int `json:"total"`
}

// NewPub is a pub read by the import tool.
type NewPub struct {
	Name     string
	Address  *string
	Location geo.Point
}
