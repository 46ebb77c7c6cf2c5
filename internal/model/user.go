package model

import "time"

// User is an account holding a credit balance on exactly one plan.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	APIKey         string    `json:"api_key"`
	Credits        int       `json:"credits"`
	PlanID         int64     `json:"plan_id"`
	Plan           *Plan     `json:"plan,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasCredits reports whether the balance covers cost.
func (u *User) HasCredits(cost int) bool {
	return u.Credits >= cost
}

// RateLimit returns the plan rate limit, or 0 when no plan is attached.
func (u *User) RateLimit() int {
	if u.Plan == nil {
		return 0
	}
	return u.Plan.RateLimit
}
