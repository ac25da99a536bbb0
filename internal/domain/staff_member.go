package domain

import "time"

// StaffMember is a staff account supplied by the identity store.
type StaffMember struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
}

// Actor is the authenticated principal performing a lifecycle operation.
type Actor struct {
	ID      int64
	IsAdmin bool
}

// Actor returns the principal view of the staff member.
func (s *StaffMember) Actor() Actor {
	return Actor{ID: s.ID, IsAdmin: s.IsAdmin}
}
