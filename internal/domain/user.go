package domain

import "time"

// User is a person known to the service: requester or agent.
type User struct {
	ID        string
	FullName  string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}
