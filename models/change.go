package models

// ChangeKind classifies a delta delivered to round subscribers
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// RoundChange is one record of a round subscription stream
type RoundChange struct {
	Kind  ChangeKind `json:"kind"`
	Round *Round     `json:"round"`
}
