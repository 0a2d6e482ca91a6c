package booking

import "time"

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// SubmitInput is the public booking submission payload.
type SubmitInput struct {
	ServiceIDs   []string  `json:"serviceIds" validate:"required,min=1,dive,required"`
	ScheduledAt  time.Time `json:"scheduledAt" validate:"required"`
	Address      string    `json:"address" validate:"required"`
	RealtorName  string    `json:"realtorName" validate:"required"`
	RealtorEmail string    `json:"realtorEmail" validate:"required,email"`
	RealtorPhone string    `json:"realtorPhone"`
	PromoCode    string    `json:"promoCode"`
	Notes        string    `json:"notes"`
}

// Booking is a confirmed shoot with its priced totals. BlockMin is the
// conflict window reserved on the calendar; VisibleMin is the shoot length
// shown to the customer.
type Booking struct {
	ID           string    `json:"id"`
	AdminID      string    `json:"adminId"`
	Status       string    `json:"status"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	BlockMin     int       `json:"blockMin"`
	VisibleMin   int       `json:"visibleMin"`
	Address      string    `json:"address"`
	RealtorName  string    `json:"realtorName"`
	RealtorEmail string    `json:"realtorEmail"`
	RealtorPhone string    `json:"realtorPhone,omitempty"`
	Notes        string    `json:"notes,omitempty"`

	PromoID       *string `json:"promoId,omitempty"`
	PromoCode     string  `json:"promoCode,omitempty"`
	SubtotalCents int64   `json:"subtotalCents"`
	DiscountCents int64   `json:"discountCents"`
	TaxCents      int64   `json:"taxCents"`
	TotalCents    int64   `json:"totalCents"`
	Currency      string  `json:"currency"`

	CreatedAt time.Time `json:"createdAt"`
}

// Line is one priced service on a booking.
type Line struct {
	ServiceID     string `json:"serviceId"`
	ServiceName   string `json:"serviceName"`
	PriceCents    int64  `json:"priceCents"`
	DiscountCents int64  `json:"discountCents"`
	TaxCents      int64  `json:"taxCents"`
	DurationMin   int    `json:"durationMin"`
}
