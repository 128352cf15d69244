package routing

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// HTTPGeocoder resolves postal addresses through the geocoding service.
type HTTPGeocoder struct {
	http    httpClient
	baseURL string
}

// NewHTTPGeocoder creates a geocoder client.
func NewHTTPGeocoder(cfg Config) *HTTPGeocoder {
	return &HTTPGeocoder{http: newHTTPClient(cfg), baseURL: cfg.GeocoderURL}
}

type geocodeResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocode resolves the address to coordinates. An unresolvable address is
// a not-found error, not a service failure.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (kernel.GeoPoint, error) {
	endpoint := g.baseURL + "/geocode?address=" + url.QueryEscape(address)

	var resp geocodeResponse
	if err := g.http.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		var perm *permanentError
		if errors.As(err, &perm) && perm.StatusCode() == http.StatusNotFound {
			return kernel.GeoPoint{}, errs.NewObjectNotFoundError("address", address)
		}
		return kernel.GeoPoint{}, err
	}

	return kernel.NewGeoPoint(resp.Lat, resp.Lon)
}
