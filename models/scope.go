package models

import (
	"fmt"
	"strings"
)

// Scope identifies an independent round pipeline: the public game or one private room
type Scope string

// PublicScope is the shared game every user can bet in
const PublicScope Scope = "public"

const roomScopePrefix = "room:"

// RoomScope returns the scope of a private room
func RoomScope(roomID string) Scope {
	return Scope(roomScopePrefix + roomID)
}

// ParseScope validates a scope string coming from the outside world
func ParseScope(raw string) (Scope, error) {
	scope := Scope(strings.TrimSpace(raw))
	if scope == PublicScope {
		return scope, nil
	}
	if scope.IsRoom() && scope.RoomID() != "" {
		return scope, nil
	}
	return "", fmt.Errorf("invalid scope %q", raw)
}

// IsRoom reports whether the scope belongs to a private room
func (s Scope) IsRoom() bool {
	return strings.HasPrefix(string(s), roomScopePrefix)
}

// RoomID returns the room identifier, or "" for the public scope
func (s Scope) RoomID() string {
	if !s.IsRoom() {
		return ""
	}
	return strings.TrimPrefix(string(s), roomScopePrefix)
}

func (s Scope) String() string {
	return string(s)
}
