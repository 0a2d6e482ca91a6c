package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/brightlens/shootbook/internal/events"
)

// BookingDetails carries everything the side-effect handlers need about a
// booking, loaded fresh from the store at delivery time.
type BookingDetails struct {
	ID           string
	AdminID      string
	RealtorEmail string
	RealtorName  string
	RealtorPhone string
	Address      string
	ScheduledAt  time.Time
	VisibleMin   int
	TotalCents   int64
	Currency     string
	Status       string
	ServiceNames []string
}

func emailSubject(topic string, b BookingDetails) string {
	switch topic {
	case events.TopicBookingCreated:
		return fmt.Sprintf("Booking confirmed for %s", b.ScheduledAt.Format("Mon, Jan 2 at 3:04 PM"))
	case events.TopicBookingRescheduled:
		return fmt.Sprintf("Booking rescheduled to %s", b.ScheduledAt.Format("Mon, Jan 2 at 3:04 PM"))
	case events.TopicBookingCanceled:
		return "Booking canceled"
	default:
		return fmt.Sprintf("Booking update (%s)", topic)
	}
}

func emailBody(topic string, b BookingDetails) string {
	var sb strings.Builder
	name := strings.TrimSpace(b.RealtorName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&sb, "Hi %s,\n\n", name)
	switch topic {
	case events.TopicBookingCanceled:
		fmt.Fprintf(&sb, "Your shoot at %s has been canceled.\n", b.Address)
	default:
		fmt.Fprintf(&sb, "Your shoot at %s is scheduled for %s (%d min).\n",
			b.Address, b.ScheduledAt.Format(time.RFC1123), b.VisibleMin)
	}
	if len(b.ServiceNames) > 0 {
		fmt.Fprintf(&sb, "\nServices:\n")
		for _, s := range b.ServiceNames {
			fmt.Fprintf(&sb, "  - %s\n", s)
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n", FormatMoney(b.TotalCents, b.Currency))
	fmt.Fprintf(&sb, "\nBooking reference: %s\n", b.ID)
	return sb.String()
}

// FormatMoney renders integer cents as a human amount, e.g. 12345 -> "USD 123.45".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
