package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

func TestHTTPGeocoder(t *testing.T) {
	t.Run("resolves an address to coordinates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/geocode", r.URL.Path)
			assert.Equal(t, "Unter den Linden 1", r.URL.Query().Get("address"))
			_ = json.NewEncoder(w).Encode(map[string]float64{"lat": 52.517, "lon": 13.397})
		}))
		defer server.Close()

		geocoder := NewHTTPGeocoder(Config{GeocoderURL: server.URL})

		point, err := geocoder.Geocode(context.Background(), "Unter den Linden 1")
		require.NoError(t, err)
		assert.InDelta(t, 52.517, point.Lat(), 1e-9)
		assert.InDelta(t, 13.397, point.Lon(), 1e-9)
	})

	t.Run("unknown address is a not-found error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no match", http.StatusNotFound)
		}))
		defer server.Close()

		geocoder := NewHTTPGeocoder(Config{GeocoderURL: server.URL})

		_, err := geocoder.Geocode(context.Background(), "Nowhere Street 1")
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]float64{"lat": 52.5, "lon": 13.4})
		}))
		defer server.Close()

		geocoder := NewHTTPGeocoder(Config{GeocoderURL: server.URL, MaxRetries: 2})

		point, err := geocoder.Geocode(context.Background(), "Unter den Linden 1")
		require.NoError(t, err)
		assert.InDelta(t, 52.5, point.Lat(), 1e-9)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer server.Close()

		geocoder := NewHTTPGeocoder(Config{GeocoderURL: server.URL, MaxRetries: 3})

		_, err := geocoder.Geocode(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestHTTPRouter(t *testing.T) {
	mustPoint := func(lat, lon float64) kernel.GeoPoint {
		p, err := kernel.NewGeoPoint(lat, lon)
		require.NoError(t, err)
		return p
	}

	t.Run("maps legs for consecutive waypoints", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/route", r.URL.Path)

			var req routeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Waypoints, 3)
			assert.InDelta(t, 52.52, req.Waypoints[0].Lat, 1e-9)

			_ = json.NewEncoder(w).Encode(routeResponse{Legs: []routeLegPayload{
				{Polyline: "abc", DistanceM: 1200, DurationS: 180},
				{Polyline: "def", DistanceM: 800, DurationS: 120},
			}})
		}))
		defer server.Close()

		router := NewHTTPRouter(Config{RouterURL: server.URL})

		legs, err := router.Legs(context.Background(), []kernel.GeoPoint{
			mustPoint(52.52, 13.40), mustPoint(52.53, 13.41), mustPoint(52.54, 13.42),
		})
		require.NoError(t, err)
		require.Len(t, legs, 2)
		assert.Equal(t, ports.RouteLeg{Polyline: "abc", DistanceM: 1200, Duration: 3 * time.Minute}, legs[0])
		assert.Equal(t, ports.RouteLeg{Polyline: "def", DistanceM: 800, Duration: 2 * time.Minute}, legs[1])
	})

	t.Run("rejects a leg count that does not match the waypoints", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(routeResponse{Legs: []routeLegPayload{
				{Polyline: "abc", DistanceM: 1200, DurationS: 180},
			}})
		}))
		defer server.Close()

		router := NewHTTPRouter(Config{RouterURL: server.URL})

		_, err := router.Legs(context.Background(), []kernel.GeoPoint{
			mustPoint(52.52, 13.40), mustPoint(52.53, 13.41), mustPoint(52.54, 13.42),
		})
		assert.Error(t, err)
	})

	t.Run("needs at least two waypoints", func(t *testing.T) {
		router := NewHTTPRouter(Config{RouterURL: "http://unused"})

		_, err := router.Legs(context.Background(), []kernel.GeoPoint{mustPoint(52.52, 13.40)})
		assert.Error(t, err)
	})
}

func TestHTTPSolver(t *testing.T) {
	start, err := kernel.NewGeoPoint(52.52, 13.40)
	require.NoError(t, err)
	firstStop := kernel.NewUUID()
	secondStop := kernel.NewUUID()

	stops := []ports.SolverStop{
		{StopID: firstStop, Location: mustSolverPoint(t, 52.53, 13.41), DemandKg: 4, ServiceTime: 3 * time.Minute, PinFirst: true},
		{StopID: secondStop, Location: mustSolverPoint(t, 52.54, 13.42), DemandKg: 2, ServiceTime: time.Minute},
	}

	t.Run("round trips the problem and the sequence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/solve", r.URL.Path)

			var req solveRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.Start)
			assert.InDelta(t, 52.52, req.Start.Lat, 1e-9)
			assert.InDelta(t, 120.0, req.CapacityKg, 1e-9)
			require.Len(t, req.Stops, 2)
			assert.Equal(t, firstStop.String(), req.Stops[0].ID)
			assert.True(t, req.Stops[0].PinFirst)
			assert.InDelta(t, 180, req.Stops[0].ServiceTimeS, 1e-9)

			_ = json.NewEncoder(w).Encode(solveResponse{
				Sequence:       []string{secondStop.String(), firstStop.String()},
				TotalDistanceM: 2400,
				TotalDurationS: 600,
			})
		}))
		defer server.Close()

		solver := NewHTTPSolver(Config{SolverURL: server.URL})

		result, err := solver.Solve(context.Background(), &start, stops, 120)
		require.NoError(t, err)
		require.Len(t, result.Sequence, 2)
		assert.True(t, result.Sequence[0].IsEqual(secondStop))
		assert.True(t, result.Sequence[1].IsEqual(firstStop))
		assert.InDelta(t, 2400, result.TotalDistanceM, 1e-9)
		assert.Equal(t, 10*time.Minute, result.TotalDuration)
	})

	t.Run("solve without a start point omits it", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req solveRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Nil(t, req.Start)

			_ = json.NewEncoder(w).Encode(solveResponse{
				Sequence: []string{firstStop.String(), secondStop.String()},
			})
		}))
		defer server.Close()

		solver := NewHTTPSolver(Config{SolverURL: server.URL})

		result, err := solver.Solve(context.Background(), nil, stops, 120)
		require.NoError(t, err)
		assert.Len(t, result.Sequence, 2)
	})

	t.Run("rejects a malformed sequence id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(solveResponse{Sequence: []string{"not-a-uuid"}})
		}))
		defer server.Close()

		solver := NewHTTPSolver(Config{SolverURL: server.URL})

		_, err := solver.Solve(context.Background(), &start, stops, 120)
		assert.Error(t, err)
	})
}

func mustSolverPoint(t *testing.T, lat, lon float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lon)
	require.NoError(t, err)
	return p
}
