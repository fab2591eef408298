package flights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/flights", r.URL.Path)
		query = map[string]string{
			"source":      r.URL.Query().Get("source"),
			"destination": r.URL.Query().Get("destination"),
			"date":        r.URL.Query().Get("date"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"airline":"IndiGo","flight_number":"6E-201","source":"DEL","destination":"BOM","departure_time":"06:00","arrival_time":"08:10","price":4599}]`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/").Search(context.Background(), "DEL", "BOM", "2025-12-01")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"source": "DEL", "destination": "BOM", "date": "2025-12-01"}, query)
	require.Len(t, res.Flights, 1)
	assert.Equal(t, "6E-201", res.Flights[0].FlightNumber)
	assert.Equal(t, "4599", res.Flights[0].Price.String())
	assert.Equal(t, "DEL", res.Source)
}

func TestSearchEnvelopeAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") == "XXX" {
			_, _ = w.Write([]byte(`{"flights":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"flights":[{"airline":"Air India","price":"5200"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Search(context.Background(), "DEL", "BOM", "")
	require.NoError(t, err)
	require.Len(t, res.Flights, 1)
	assert.Equal(t, "5200", res.Flights[0].Price.String())

	res, err = c.Search(context.Background(), "XXX", "BOM", "")
	require.NoError(t, err)
	assert.NotNil(t, res.Flights)
	assert.Empty(t, res.Flights)
}

func TestSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") == "BAD" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), "DEL", "BOM", "")
	assert.ErrorContains(t, err, "unexpected status code: 503")

	_, err = c.Search(context.Background(), "BAD", "BOM", "")
	assert.ErrorContains(t, err, "decoding response")
}
