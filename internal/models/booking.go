package models

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Listing is a rentable item. The chat core only reads Title and OwnerID.
type Listing struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Title        string `gorm:"not null" json:"title"`
	PricePerDay  int64  `json:"price_per_day"`
	Location     string `json:"location"`
	CoverURL     string `json:"cover_url,omitempty"`
	IsPublished  bool   `gorm:"default:true" json:"is_published"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// Booking links a renter to a listing. When a booking is confirmed a
// conversation between renter and owner is opened off of it.
type Booking struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;index" json:"listing_id"`
	RenterID  uuid.UUID `gorm:"type:uuid;not null;index" json:"renter_id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Reference string        `gorm:"type:varchar(30);uniqueIndex" json:"reference"`
	Status    BookingStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Renter  *User    `gorm:"foreignKey:RenterID" json:"renter,omitempty"`
	Owner   *User    `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
