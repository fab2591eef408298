package flights

import "encoding/json"

// Flight is one option returned by the flights search endpoint. The
// upstream API is loosely specified, so every field is optional.
type Flight struct {
	Airline       string      `json:"airline"`
	FlightNumber  string      `json:"flight_number"`
	Source        string      `json:"source"`
	Destination   string      `json:"destination"`
	Date          string      `json:"date,omitempty"`
	DepartureTime string      `json:"departure_time"`
	ArrivalTime   string      `json:"arrival_time"`
	Duration      string      `json:"duration,omitempty"`
	Price         json.Number `json:"price,omitempty"`
	Stops         int         `json:"stops,omitempty"`
}

// SearchResponse wraps the list endpoint for callers that want the
// resolved airport codes alongside the flights.
type SearchResponse struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Date        string   `json:"date,omitempty"`
	Flights     []Flight `json:"flights"`
}

// envelope covers deployments that wrap the list in an object.
type envelope struct {
	Flights []Flight `json:"flights"`
}
