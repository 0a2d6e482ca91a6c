package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brightlens/shootbook/internal/resilience"
)

// CalendarEvent is the payload pushed to the scheduling calendar. Start and
// End cover the customer-visible shoot window; the conflict block including
// buffers stays internal to availability checks.
type CalendarEvent struct {
	BookingID string    `json:"bookingId"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// CalendarClient pushes booking windows to the external calendar API. HTTP is
// typically a resilience.HTTPClient so calls retry and trip a breaker.
type CalendarClient struct {
	HTTP    httpDoer
	BaseURL string
	APIKey  string
}

var _ httpDoer = resilience.HTTPClient{}

// SyncBooking creates or updates the calendar entry for a booking.
func (c CalendarClient) SyncBooking(ctx context.Context, event CalendarEvent) error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("notify: calendar base url not configured")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/events"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: calendar sync: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: calendar sync: unexpected status %s", resp.Status)
	}
	return nil
}

// RemoveBooking deletes the calendar entry for a canceled booking.
func (c CalendarClient) RemoveBooking(ctx context.Context, bookingID string) error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("notify: calendar base url not configured")
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/events/" + bookingID
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: calendar remove: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("notify: calendar remove: unexpected status %s", resp.Status)
	}
	return nil
}
