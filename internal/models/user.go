package models

import "time"

type User struct {
	ID            int        `json:"id" example:"1"`                       // User ID
	Email         string     `json:"email" example:"user@example.com"`     // User email
	FirstName     string     `json:"FirstName" example:"John"`             // User first name
	LastName      string     `json:"LastName" example:"Doe"`               // User last name
	AccountNumber string     `json:"AccountNumber" example:"1234567890"`   // User account number
	PhoneNumber   string     `json:"PhoneNumber" example:"+2348012345678"` // User phone number
	Address       string     `json:"Address,omitempty"`
	Role          string     `json:"role,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Notification is an in-app message shown on the user's dashboard.
// Listing notifications marks them read.
type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContactMessage is a message from a user to the bank's admin team.
type ContactMessage struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Subject   string    `json:"subject" db:"subject"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
