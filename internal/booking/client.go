// internal/booking/client.go
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	xerrors "salonfunnel-service/internal/pkg/errors"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ClientMetrics mirrors the per-client counters the booking system owns.
type ClientMetrics struct {
	Phone      string  `json:"phone"`
	VisitCount int64   `json:"visit_count"`
	TotalSpent float64 `json:"total_spent"`
}

// Visit is one historical appointment row from the booking system.
type Visit struct {
	Datetime       time.Time `json:"datetime"`
	Services       []string  `json:"services"`
	AttendanceCode int       `json:"attendance_code"`
}

// Client reads the third-party booking system API. Every failure degrades to
// xerrors.ErrUpstreamUnavailable so callers can fall back to null values and
// keep saving.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiToken string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json").
		SetAuthToken(apiToken)

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

type metricsResponse struct {
	Phone      string  `json:"phone"`
	VisitCount int64   `json:"visits_count"`
	TotalSpent float64 `json:"spent"`
}

type visitResponse struct {
	Datetime   string `json:"datetime"`
	Attendance int    `json:"attendance"`
	Services   []struct {
		Title string `json:"title"`
	} `json:"services"`
}

// GetClientMetrics fetches phone, visit count and total spent for an external
// booking id.
func (c *Client) GetClientMetrics(ctx context.Context, externalID int64) (*ClientMetrics, error) {
	var body metricsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/clients/%d", externalID))

	if err != nil {
		c.logger.Warn("booking API unreachable",
			zap.Int64("external_id", externalID),
			zap.Error(err),
		)
		return nil, xerrors.ErrUpstreamUnavailable
	}
	if resp.IsError() {
		c.logger.Warn("booking API returned error",
			zap.Int64("external_id", externalID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, xerrors.ErrUpstreamUnavailable
	}

	return &ClientMetrics{
		Phone:      body.Phone,
		VisitCount: body.VisitCount,
		TotalSpent: body.TotalSpent,
	}, nil
}

// GetClientRecords fetches the appointment history for an external booking id.
func (c *Client) GetClientRecords(ctx context.Context, externalID int64) ([]Visit, error) {
	var body []visitResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/clients/%d/records", externalID))

	if err != nil {
		c.logger.Warn("booking API unreachable",
			zap.Int64("external_id", externalID),
			zap.Error(err),
		)
		return nil, xerrors.ErrUpstreamUnavailable
	}
	if resp.IsError() {
		c.logger.Warn("booking API returned error",
			zap.Int64("external_id", externalID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, xerrors.ErrUpstreamUnavailable
	}

	visits := make([]Visit, 0, len(body))
	for _, raw := range body {
		visit := Visit{AttendanceCode: raw.Attendance}
		if t, err := time.Parse(time.RFC3339, raw.Datetime); err == nil {
			visit.Datetime = t
		}
		for _, svc := range raw.Services {
			visit.Services = append(visit.Services, svc.Title)
		}
		visits = append(visits, visit)
	}

	return visits, nil
}

// HasCompletedVisitBefore answers whether the external id ever had a completed
// non-consultation visit strictly before t. Upstream failure propagates as
// ErrUpstreamUnavailable; the caller decides how to degrade.
func (c *Client) HasCompletedVisitBefore(ctx context.Context, externalID int64, t time.Time) (bool, error) {
	visits, err := c.GetClientRecords(ctx, externalID)
	if err != nil {
		return false, err
	}

	for _, visit := range visits {
		if visit.AttendanceCode <= 0 {
			continue
		}
		if !visit.Datetime.Before(t) {
			continue
		}
		if isConsultationVisit(visit.Services) {
			continue
		}
		return true, nil
	}

	return false, nil
}

func isConsultationVisit(services []string) bool {
	for _, title := range services {
		lower := strings.ToLower(title)
		if strings.Contains(lower, "consultation") || strings.Contains(lower, "консультация") {
			return true
		}
	}
	return false
}
