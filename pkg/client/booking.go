package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"courtbook/pkg/model"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// BookingClient is a typed client of the bookings API. Identity headers are
// forwarded as-is; the gateway in front of the service is expected to set them.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

// As returns a copy of the client acting as the given identity.
func (c *BookingClient) As(userID string, role model.Role) *BookingClient {
	headers := make(map[string]string, len(c.httpClient.Headers)+2)
	for k, v := range c.httpClient.Headers {
		headers[k] = v
	}
	headers[HeaderUserID] = userID
	headers[HeaderRole] = string(role)

	hc := *c.httpClient
	hc.Headers = headers
	return &BookingClient{httpClient: &hc}
}

func (c *BookingClient) Availability(ctx context.Context, courtID string, start, end time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	path := "/api/v1/courts/" + url.PathEscape(courtID) + "/availability?" + q.Encode()
	return c.httpClient.GET(ctx, path)
}

func (c *BookingClient) AddMaintenance(ctx context.Context, courtID string, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/courts/"+url.PathEscape(courtID)+"/maintenance", body)
}

func (c *BookingClient) Create(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings", body)
}

func (c *BookingClient) Get(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
}

func (c *BookingClient) Confirm(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/confirm", struct{}{})
}

func (c *BookingClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/cancel", struct{}{})
}

func (c *BookingClient) Delete(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
}

func (c *BookingClient) ListMine(ctx context.Context, filter model.BookingFilter) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/bookings/mine?"+filterQuery(filter).Encode())
}

func (c *BookingClient) ListOwner(ctx context.Context, filter model.BookingFilter) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/owner/bookings?"+filterQuery(filter).Encode())
}

func filterQuery(filter model.BookingFilter) url.Values {
	q := url.Values{}
	if filter.CourtID != "" {
		q.Set("court_id", filter.CourtID)
	}
	if filter.FacilityID != "" {
		q.Set("facility_id", filter.FacilityID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.From != nil {
		q.Set("from", filter.From.Format(time.RFC3339))
	}
	if filter.To != nil {
		q.Set("to", filter.To.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.FormatInt(filter.Offset, 10))
	}
	return q
}

type Metadata struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int64 `json:"offset"`
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode booking wrapper: %s: %w", resp.ToString(), err)
	}

	var booking model.Booking
	if err := json.Unmarshal(wrapper.Data, &booking); err != nil {
		return nil, fmt.Errorf("could not decode booking json: %s: %w", resp.ToString(), err)
	}

	return &booking, nil
}

func (c *BookingClient) DecodeAvailability(resp *Response) (*model.Availability, error) {
	var wrapper struct {
		Data model.Availability `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode availability: %s: %w", resp.ToString(), err)
	}
	return &wrapper.Data, nil
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, *Metadata, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
		Metadata
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp: %s: %w", resp.ToString(), err)
	}

	var bookings []*model.Booking
	if err := json.Unmarshal(wrapper.Data, &bookings); err != nil {
		return nil, nil, fmt.Errorf("could not decode booking list: %s: %w", resp.ToString(), err)
	}

	return bookings, &wrapper.Metadata, nil
}
