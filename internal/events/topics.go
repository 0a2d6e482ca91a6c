package events

// Topic constants for domain events emitted by the platform.
const (
	TopicBookingCreated     = "booking.created"
	TopicBookingRescheduled = "booking.rescheduled"
	TopicBookingCanceled    = "booking.canceled"
	TopicPromoApplied       = "promo.applied"
)

// DefaultTopics returns the canonical list of topics that fan out to
// side-effect handlers.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingRescheduled,
		TopicBookingCanceled,
		TopicPromoApplied,
	}
}
