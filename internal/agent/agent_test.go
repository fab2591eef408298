package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/config"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/intent"
	"github.com/danpilch/tripdesk/internal/scraper"
	"github.com/danpilch/tripdesk/internal/travel"
)

const listingURL = "https://railways.example.com/TrainListInfo/x"

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeTrains struct {
	searches []string
	booked   []travel.BookRequest
}

func trainResult() *scraper.Result {
	return &scraper.Result{
		Status: scraper.StatusSuccess,
		Kind:   catalog.KindTrain,
		URL:    listingURL,
		Offerings: []catalog.Offering{
			{Identifier: "12345", Name: "Express", AvailableClasses: []catalog.FareClass{catalog.ClassSecondAC, catalog.ClassThirdAC}},
		},
		Message: "Found 1 trains. Please select one and choose a coach class.",
	}
}

func (f *fakeTrains) Search(_ context.Context, origin, destination, _ string) *travel.Listing {
	f.searches = append(f.searches, origin+"->"+destination)
	return &travel.Listing{Result: trainResult(), Display: "[0] 12345 - Express"}
}

func (f *fakeTrains) List(context.Context, string) *travel.Listing {
	return &travel.Listing{Result: trainResult(), Display: "[0] 12345 - Express"}
}

func (f *fakeTrains) Book(_ context.Context, req travel.BookRequest) (*travel.BookingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.booked = append(f.booked, req)
	return &travel.BookingResult{
		Status:     "success",
		BookingURL: "https://railways.example.com/checkout",
		Message:    "Checkout page reached for train 12345.",
		Display:    "BOOKING SUMMARY\n...",
	}, nil
}

type fakeListings struct {
	calls []string
}

func (f *fakeListings) Buses(_ context.Context, origin, destination, _ string) *travel.Listing {
	f.calls = append(f.calls, "buses:"+origin+"->"+destination)
	return &travel.Listing{Result: &scraper.Result{Status: scraper.StatusPartial, Kind: catalog.KindBus}, Display: "No buses could be read"}
}

func (f *fakeListings) Activities(_ context.Context, destination, _ string) *travel.Listing {
	f.calls = append(f.calls, "activities:"+destination)
	return &travel.Listing{Result: &scraper.Result{Status: scraper.StatusPartial, Kind: catalog.KindActivity}, Display: "No activities could be read"}
}

func (f *fakeListings) Flights(_ context.Context, origin, destination, date string) *travel.FlightResult {
	f.calls = append(f.calls, "flights:"+origin+"->"+destination+"@"+date)
	return &travel.FlightResult{Status: "success", Display: "FLIGHTS DEL -> BOM"}
}

func (f *fakeListings) search(q string) *travel.SearchResult {
	f.calls = append(f.calls, "search:"+q)
	return &travel.SearchResult{Status: "success", Query: q, Display: "answer for " + q}
}

func (f *fakeListings) WebSearch(_ context.Context, q string) *travel.SearchResult {
	return f.search(q)
}

func (f *fakeListings) Hotels(_ context.Context, destination string, n int) *travel.SearchResult {
	return f.search("hotels " + destination)
}

func (f *fakeListings) LocalGuides(_ context.Context, destination string) *travel.SearchResult {
	return f.search("guides " + destination)
}

func (f *fakeListings) Nearby(_ context.Context, place, category string) *travel.SearchResult {
	return f.search(category + " near " + place)
}

func TestDirectTrainSearchRemembersListing(t *testing.T) {
	trains := &fakeTrains{}
	d := NewDirect(trains, &fakeListings{}, testLogger())

	reply, err := d.Respond(context.Background(), Request{Query: "Book train from Ongole to Hyderabad on 04-11-2025"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ongole->Hyderabad"}, trains.searches)
	assert.Equal(t, "Found 1 trains. Please select one and choose a coach class.", reply.Message)
	assert.Contains(t, reply.Display, "[0] 12345 - Express")
	assert.Equal(t, listingURL, reply.Context[ContextListingURL])
	assert.Equal(t, "Hyderabad", reply.Context[ContextDest])
}

func TestDirectBookingFollowUp(t *testing.T) {
	trains := &fakeTrains{}
	d := NewDirect(trains, &fakeListings{}, testLogger())
	prior := map[string]any{ContextListingURL: listingURL}

	reply, err := d.Respond(context.Background(), Request{Query: "book 0 in 2a", Context: prior})
	require.NoError(t, err)
	require.Len(t, trains.booked, 1)
	assert.Equal(t, listingURL, trains.booked[0].URL)
	assert.Equal(t, 0, *trains.booked[0].Index)
	assert.Equal(t, "2A", trains.booked[0].Class)
	assert.Equal(t, "Checkout page reached for train 12345.", reply.Message)
	assert.IsType(t, &travel.BookingResult{}, reply.Data)

	reply, err = d.Respond(context.Background(), Request{Query: "book 0", Context: prior})
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "Which coach class")
	assert.Contains(t, reply.Display, "Available coaches: 2A, 3A")
	assert.Len(t, trains.booked, 1)

	reply, err = d.Respond(context.Background(), Request{Query: "book 0 in 2A"})
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "Search for trains first")
}

func TestDirectMultipleIntents(t *testing.T) {
	listings := &fakeListings{}
	d := NewDirect(&fakeTrains{}, listings, testLogger())

	reply, err := d.Respond(context.Background(), Request{Query: "flights from Delhi to Mumbai on 2025-12-01 and hotels there for 2 people"})
	require.NoError(t, err)

	assert.Equal(t, []string{"flights:Delhi->Mumbai@2025-12-01", "search:hotels Mumbai"}, listings.calls)
	assert.Contains(t, reply.Display, "FLIGHTS DEL -> BOM\n\nanswer for hotels Mumbai")
	data, ok := reply.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, intent.Flights)
	assert.Contains(t, data, intent.Hotels)
}

func TestDirectUsesEarlierRoute(t *testing.T) {
	listings := &fakeListings{}
	d := NewDirect(&fakeTrains{}, listings, testLogger())

	_, err := d.Respond(context.Background(), Request{
		Query:   "any buses?",
		Context: map[string]any{ContextOrigin: "Delhi", ContextDest: "Jaipur"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"buses:Delhi->Jaipur"}, listings.calls)
}

func TestDirectGuidance(t *testing.T) {
	listings := &fakeListings{}
	d := NewDirect(&fakeTrains{}, listings, testLogger())

	reply, err := d.Respond(context.Background(), Request{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, helpText, reply.Display)

	reply, err = d.Respond(context.Background(), Request{Query: "trains please"})
	require.NoError(t, err)
	assert.Contains(t, reply.Display, "tell me both cities")

	reply, err = d.Respond(context.Background(), Request{Query: "visit Hampi"})
	require.NoError(t, err)
	assert.Equal(t, "answer for travel guide for Hampi", reply.Display)

	_, err = d.Respond(context.Background(), Request{Query: "restaurants in Goa"})
	require.NoError(t, err)
	assert.Contains(t, listings.calls, "search:restaurants near Goa")
}

func TestRegistry(t *testing.T) {
	trains := &fakeTrains{}
	r := NewRegistry(trains, &fakeListings{})

	var names []string
	for _, tool := range r.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"parse_trip_request", "search_trains", "book_train", "search_buses", "search_activities",
		"search_flights", "web_search", "search_hotels", "local_guides", "nearby_places",
	}, names)

	_, err := r.Call(context.Background(), "search_trains", Args{"origin": "Delhi"})
	assert.ErrorContains(t, err, `missing required argument "destination"`)

	_, err = r.Call(context.Background(), "teleport", Args{})
	assert.ErrorContains(t, err, "unknown tool")

	out, err := r.Call(context.Background(), "book_train", Args{"url": listingURL, "train_index": float64(0), "coach_class": "3A"})
	require.NoError(t, err)
	assert.Equal(t, "success", out.(*travel.BookingResult).Status)

	_, err = r.Call(context.Background(), "book_train", Args{"url": listingURL, "train_index": 1.5, "coach_class": "3A"})
	assert.ErrorContains(t, err, "must be an integer")

	out, err = r.Call(context.Background(), "parse_trip_request", Args{"text": "trains from Pune to Mumbai"})
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", out.(intent.Request).Destination)
}

func TestArgs(t *testing.T) {
	a := Args{"s": " x ", "f": float64(3), "n": "4", "bad": "four"}
	assert.Equal(t, "x", a.String("s"))
	assert.Equal(t, "3", a.String("f"))
	assert.Empty(t, a.String("missing"))
	n, ok := a.Int("f")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = a.Int("n")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	_, ok = a.Int("bad")
	assert.False(t, ok)
}

type scriptedModel struct {
	responses []*genai.GenerateContentResponse
	seen      [][]*genai.Content
}

func (s *scriptedModel) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.seen = append(s.seen, append([]*genai.Content(nil), contents...))
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	r := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return r, nil
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{ID: "call-1", Name: name, Args: args}}}},
	}}}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

func TestGenAIToolLoop(t *testing.T) {
	model := &scriptedModel{responses: []*genai.GenerateContentResponse{
		callResponse("search_trains", map[string]any{"origin": "Ongole", "destination": "Hyderabad"}),
		textResponse("Here is train 12345 Express."),
	}}
	trains := &fakeTrains{}
	g := newGenAI(model, "gemini-2.0-flash", 6, NewRegistry(trains, &fakeListings{}), testLogger())

	reply, err := g.Respond(context.Background(), Request{
		Query:   "trains from Ongole to Hyderabad",
		History: []conversation.Turn{{Role: conversation.RoleUser, Content: "hi"}, {Role: conversation.RoleAssistant, Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is train 12345 Express.", reply.Message)
	assert.Equal(t, []string{"Ongole->Hyderabad"}, trains.searches)
	assert.Equal(t, listingURL, reply.Context[ContextListingURL])

	require.Len(t, model.seen, 2)
	assert.Equal(t, genai.RoleModel, model.seen[0][1].Role)
	last := model.seen[1][len(model.seen[1])-1]
	require.NotNil(t, last.Parts[0].FunctionResponse)
	assert.Equal(t, "search_trains", last.Parts[0].FunctionResponse.Name)
	assert.Equal(t, "success", last.Parts[0].FunctionResponse.Response["status"])
}

func TestGenAIStopsAtToolLimit(t *testing.T) {
	model := &scriptedModel{responses: []*genai.GenerateContentResponse{
		callResponse("web_search", map[string]any{"query": "goa"}),
	}}
	g := newGenAI(model, "m", 3, NewRegistry(&fakeTrains{}, &fakeListings{}), testLogger())

	_, err := g.Respond(context.Background(), Request{Query: "tell me about goa"})
	assert.ErrorIs(t, err, ErrToolLimit)
	assert.Len(t, model.seen, 3)
}

func TestGenAIReportsToolErrorsToModel(t *testing.T) {
	model := &scriptedModel{responses: []*genai.GenerateContentResponse{
		callResponse("search_flights", map[string]any{"origin": "Delhi"}),
		textResponse("Where are you flying to?"),
	}}
	g := newGenAI(model, "m", 6, NewRegistry(&fakeTrains{}, &fakeListings{}), testLogger())

	reply, err := g.Respond(context.Background(), Request{Query: "flights from delhi"})
	require.NoError(t, err)
	assert.Equal(t, "Where are you flying to?", reply.Message)
	resp := model.seen[1][len(model.seen[1])-1].Parts[0].FunctionResponse.Response
	assert.Contains(t, resp["error"], "destination")
}

func TestDeclarations(t *testing.T) {
	decls := declarations(NewRegistry(&fakeTrains{}, &fakeListings{}))
	require.Len(t, decls, 10)
	book := decls[2]
	assert.Equal(t, "book_train", book.Name)
	assert.Equal(t, genai.TypeInteger, book.Parameters.Properties["train_index"].Type)
	assert.Equal(t, []string{"url", "train_index", "coach_class"}, book.Parameters.Required)
}

func TestRemote(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/query":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"response":"Found flights.","data":{"count":2}}`))
		case "/plain":
			_, _ = w.Write([]byte("just text\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/query", srv.URL+"/health", time.Second, testLogger())
	require.NoError(t, r.Check(context.Background()))

	reply, err := r.Respond(context.Background(), Request{ConversationID: "conv_1", Query: "flights", Step: "initial"})
	require.NoError(t, err)
	assert.Equal(t, "Found flights.", reply.Message)
	assert.Equal(t, "Found flights.", reply.Display)
	assert.Equal(t, "conv_1", got.ConversationID)
	assert.NotNil(t, got.History)

	reply, err = NewRemote(srv.URL+"/plain", "", time.Second, testLogger()).Respond(context.Background(), Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "just text", reply.Message)

	_, err = NewRemote(srv.URL+"/missing", "", time.Second, testLogger()).Respond(context.Background(), Request{Query: "x"})
	assert.ErrorContains(t, err, "unexpected status code: 404")

	err = NewRemote(srv.URL, srv.URL+"/down", time.Second, testLogger()).Check(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestCommand(t *testing.T) {
	c := NewCommand([]string{"sh", "-c", `read q; echo "{\"message\":\"echo: $q\",\"display\":\"$CONVERSATION_ID\"}"`}, 5*time.Second, testLogger())
	reply, err := c.Respond(context.Background(), Request{ConversationID: "conv_9", Query: "hotels in goa\n"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hotels in goa", reply.Message)
	assert.Equal(t, "conv_9", reply.Display)

	_, err = NewCommand([]string{"sh", "-c", "exec sleep 5"}, 50*time.Millisecond, testLogger()).Respond(context.Background(), Request{Query: "x"})
	assert.ErrorContains(t, err, "timed out")

	_, err = NewCommand([]string{"sh", "-c", "exit 3"}, time.Second, testLogger()).Respond(context.Background(), Request{Query: "x"})
	assert.ErrorContains(t, err, "running agent command")

	_, err = NewCommand(nil, time.Second, testLogger()).Respond(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestNew(t *testing.T) {
	deps := Deps{Trains: &fakeTrains{}, Listings: &fakeListings{}, Logger: testLogger()}
	cfg := config.Default().Agent

	b, err := New(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "direct", b.Name())

	cfg.Backend = config.BackendGenAI
	_, err = New(context.Background(), cfg, deps)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	cfg.Backend = config.BackendCommand
	cfg.Command = []string{"cat"}
	b, err = New(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "command", b.Name())

	cfg.Backend = config.BackendRemote
	cfg.RemoteURL = "http://127.0.0.1:1/query"
	cfg.HealthURL = "http://127.0.0.1:1/health"
	_, err = New(context.Background(), cfg, deps)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
