package services

import (
	"time"
)

// ServiceType is a kind of work the business offers; orders reference one.
type ServiceType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
