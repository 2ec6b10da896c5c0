package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
	RoomReserved    RoomStatus = "reserved"
)

// Property is a managed building.
type Property struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"not null"`
	Address   string    `json:"address"`
	Rooms     []Room    `json:"rooms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room is a rentable unit of a property.
type Room struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PropertyID  uuid.UUID  `json:"property_id" gorm:"type:uuid;not null;index"`
	Number      string     `json:"number" gorm:"not null"`
	Status      RoomStatus `json:"status" gorm:"type:varchar(20);not null;default:'available'"`
	MonthlyRent float64    `json:"monthly_rent" gorm:"type:decimal(12,2)"`
	Version     int        `json:"version" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
