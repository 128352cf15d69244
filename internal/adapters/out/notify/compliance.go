package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"orderflow/internal/core/domain/model/kernel"
)

const defaultComplianceTimeout = 5 * time.Second

// HTTPCompliance asks the compliance service whether a driver's paperwork
// is approved. Failures propagate raw; the caller decides how a compliance
// outage affects the operation.
type HTTPCompliance struct {
	client  *http.Client
	baseURL string
}

// NewHTTPCompliance creates a compliance client. A non-positive timeout
// falls back to the default.
func NewHTTPCompliance(baseURL string, timeout time.Duration) *HTTPCompliance {
	if timeout <= 0 {
		timeout = defaultComplianceTimeout
	}
	return &HTTPCompliance{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type approvalResponse struct {
	Approved bool `json:"approved"`
}

// IsDriverApproved fetches the driver's approval state.
func (c *HTTPCompliance) IsDriverApproved(ctx context.Context, driverID kernel.UUID) (bool, error) {
	endpoint := fmt.Sprintf("%s/drivers/%s/approval", c.baseURL, driverID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	// An unknown driver has no approved paperwork.
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("compliance service answered %d: %s", resp.StatusCode, raw)
	}

	var approval approvalResponse
	if err = json.NewDecoder(resp.Body).Decode(&approval); err != nil {
		return false, err
	}
	return approval.Approved, nil
}
