package models

import (
	"time"
)

// Reservation statuses. Transitions are one-directional: an active
// reservation becomes fulfilled or cancelled and terminal states never
// revert.
const (
	ReservationActive    = "active"
	ReservationFulfilled = "fulfilled"
	ReservationCancelled = "cancelled"
)

// Actor roles resolved by the gateway.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleMember    = "member"
)

type Book struct {
	ID             uint   `gorm:"primaryKey"`
	BookUid        string `gorm:"type:uuid;uniqueIndex;not null"`
	Title          string `gorm:"not null"`
	Author         string
	ISBN           string `gorm:"size:20"`
	PublishDate    time.Time
	IsAvailable    bool   `gorm:"not null"`
	CurrentLoanUid string `gorm:"type:uuid"` // empty while the book is on the shelf
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Member struct {
	ID           uint   `gorm:"primaryKey"`
	MemberUid    string `gorm:"type:uuid;uniqueIndex;not null"`
	Name         string `gorm:"size:80;not null"`
	MembershipID string `gorm:"size:20;uniqueIndex;not null"`
	Email        string `gorm:"size:120"`
	Phone        string `gorm:"size:30"`
	JoinDate     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Loan struct {
	ID               uint   `gorm:"primaryKey"`
	LoanUid          string `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid          string `gorm:"type:uuid;not null"`
	MemberUid        string `gorm:"type:uuid;not null"`
	LoanDate         time.Time
	DueDate          time.Time
	ActualReturnDate *time.Time
	IsOverdue        bool `gorm:"not null"` // evaluated once when the loan is created
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Reservation struct {
	ID              uint   `gorm:"primaryKey"`
	ReservationUid  string `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid         string `gorm:"type:uuid;not null"`
	MemberUid       string `gorm:"type:uuid;not null"`
	ReservationDate time.Time
	Status          string `gorm:"size:20;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
