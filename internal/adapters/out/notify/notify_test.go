package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
)

func TestSlogNotifier(t *testing.T) {
	t.Run("emits the event with order id and payload", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewSlogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
		orderID := kernel.NewUUID()

		notifier.Notify(context.Background(), ports.EventStatusChanged, orderID, map[string]any{
			"status": "Accepted",
		})

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, ports.EventStatusChanged, record["event"])
		assert.Equal(t, orderID.String(), record["order_id"])
		assert.Equal(t, "Accepted", record["status"])
		assert.Equal(t, "notifier", record["component"])
	})

	t.Run("nil payload is fine", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewSlogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

		notifier.Notify(context.Background(), ports.EventRouteUpdated, kernel.NewUUID(), nil)

		assert.Contains(t, buf.String(), ports.EventRouteUpdated)
	})
}

func TestHTTPCompliance(t *testing.T) {
	driverID := kernel.NewUUID()

	t.Run("approved driver", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/drivers/"+driverID.String()+"/approval", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]bool{"approved": true})
		}))
		defer server.Close()

		approved, err := NewHTTPCompliance(server.URL, 0).IsDriverApproved(context.Background(), driverID)
		require.NoError(t, err)
		assert.True(t, approved)
	})

	t.Run("unknown driver is not approved", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such driver", http.StatusNotFound)
		}))
		defer server.Close()

		approved, err := NewHTTPCompliance(server.URL, 0).IsDriverApproved(context.Background(), driverID)
		require.NoError(t, err)
		assert.False(t, approved)
	})

	t.Run("server failure propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewHTTPCompliance(server.URL, 0).IsDriverApproved(context.Background(), driverID)
		assert.Error(t, err)
	})
}
