package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CRMBooking is the record upserted into the realtor CRM: contact details
// plus the latest booking activity.
type CRMBooking struct {
	BookingID    string `json:"bookingId"`
	RealtorEmail string `json:"realtorEmail"`
	RealtorName  string `json:"realtorName,omitempty"`
	RealtorPhone string `json:"realtorPhone,omitempty"`
	Address      string `json:"address,omitempty"`
	TotalCents   int64  `json:"totalCents"`
	Status       string `json:"status"`
}

// CRMClient pushes booking activity to the external CRM.
type CRMClient struct {
	HTTP    httpDoer
	BaseURL string
	APIKey  string
}

type httpDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// PushBooking upserts the contact and logs the booking on their timeline.
func (c CRMClient) PushBooking(ctx context.Context, record CRMBooking) error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("notify: crm base url not configured")
	}
	if strings.TrimSpace(record.RealtorEmail) == "" {
		return errors.New("notify: crm push requires realtor email")
	}
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/contacts/bookings"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: crm push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: crm push: unexpected status %s", resp.Status)
	}
	return nil
}
