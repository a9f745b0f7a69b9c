package models

import (
	"time"

	"github.com/google/uuid"
)

type LeagueStatus string

const (
	LeagueStatusPending   LeagueStatus = "PENDING"
	LeagueStatusActive    LeagueStatus = "ACTIVE"
	LeagueStatusCompleted LeagueStatus = "COMPLETED"
	LeagueStatusCancelled LeagueStatus = "CANCELLED"
)

// League owns a draft and its participants
type League struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	CommissionerID uuid.UUID    `json:"commissioner_id"`
	Status         LeagueStatus `json:"league_status"`
	Season         string       `json:"season"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
