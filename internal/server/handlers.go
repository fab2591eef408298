package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/agent"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/travel"
)

const defaultStep = "initial"

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]any {
	return map[string]any{
		"status":    "error",
		"message":   msg,
		"timestamp": timestamp(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tripdesk",
		"version": s.deps.Version,
		"agent":   s.deps.Agent.Name(),
		"endpoints": []string{
			"GET /health",
			"GET|POST /api/query",
			"GET /api/conversations",
			"GET /api/conversations/{id}",
			"GET /api/trains/scrape?url=",
			"POST /api/trains/book",
			"GET /api/buses?origin=&destination=&date=",
			"GET /api/activities?destination=&date=",
			"GET /api/flights?origin=&destination=&date=",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": timestamp(),
	})
}

type queryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	Step           string `json:"step"`
}

type queryResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
	Step           string `json:"step"`
	Message        string `json:"message"`
	Display        string `json:"display"`
	Timestamp      string `json:"timestamp"`
	Agent          string `json:"agent,omitempty"`
	Data           any    `json:"data,omitempty"`
}

// decodeQuery reads the query from a JSON body, falling back to URL and
// form parameters for fields the body leaves empty.
func decodeQuery(r *http.Request) (queryRequest, error) {
	var q queryRequest
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
			return q, errors.Wrap(ErrValidation, "request body is not valid JSON")
		}
	}
	if q.Query == "" {
		q.Query = r.FormValue("query")
	}
	if q.ConversationID == "" {
		q.ConversationID = r.FormValue("conversation_id")
	}
	if q.Step == "" {
		q.Step = r.FormValue("step")
	}
	q.Query = strings.TrimSpace(q.Query)
	return q, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r)
	q, err := decodeQuery(r)
	if q.Step == "" {
		q.Step = defaultStep
	}
	if q.ConversationID == "" {
		q.ConversationID = conversation.NewID()
	}
	resp := queryResponse{
		Status:         "error",
		ConversationID: q.ConversationID,
		Step:           q.Step,
		Timestamp:      timestamp(),
		Agent:          s.deps.Agent.Name(),
	}
	if err == nil && q.Query == "" {
		err = errors.Wrap(ErrValidation, "query is required")
	}
	if err != nil {
		resp.Message = err.Error()
		resp.Display = resp.Message
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	log = log.WithFields(logrus.Fields{
		"conversation_id": q.ConversationID,
		"step":            q.Step,
	})

	ctx := r.Context()
	var history []conversation.Turn
	convContext := map[string]any{}
	conv, err := s.deps.Store.Get(ctx, q.ConversationID)
	switch {
	case err == nil:
		history = conv.History
		convContext = conv.Context
	case errors.Is(err, conversation.ErrNotFound):
	default:
		log.WithField("error", errors.Wrap(err, "loading conversation")).Warn("continuing without history")
	}

	if _, err := s.deps.Store.Append(ctx, q.ConversationID, conversation.Turn{
		Role:      conversation.RoleUser,
		Content:   q.Query,
		Timestamp: time.Now(),
	}); err != nil {
		log.WithField("error", errors.Wrap(err, "saving user turn")).Warn("conversation not persisted")
	}

	reply, err := s.deps.Agent.Respond(ctx, agent.Request{
		ConversationID: q.ConversationID,
		Query:          q.Query,
		Step:           q.Step,
		History:        history,
		Context:        convContext,
	})
	if err != nil {
		log.WithField("error", err).Error("agent failed")
		resp.Message = "Sorry, I couldn't process that request right now. Please try again or rephrase it."
		resp.Display = resp.Message
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if _, err := s.deps.Store.Append(ctx, q.ConversationID, conversation.Turn{
		Role:      conversation.RoleAssistant,
		Content:   reply.Display,
		Timestamp: time.Now(),
	}); err != nil {
		log.WithField("error", errors.Wrap(err, "saving assistant turn")).Warn("conversation not persisted")
	}
	for k, v := range reply.Context {
		if err := s.deps.Store.SetContext(ctx, q.ConversationID, k, v); err != nil {
			log.WithFields(logrus.Fields{"key": k, "error": err}).Warn("context not persisted")
		}
	}

	resp.Status = "success"
	resp.Message = reply.Message
	resp.Display = reply.Display
	resp.Data = reply.Data
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Store.List(r.Context())
	if err != nil {
		requestLog(r).WithField("error", err).Error("listing conversations")
		writeJSON(w, http.StatusInternalServerError, errorBody("could not list conversations"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"conversations": ids,
		"count":         len(ids),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	conv, err := s.deps.Store.Get(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		body := errorBody("conversation " + id + " not found")
		body["conversation_id"] = id
		writeJSON(w, http.StatusNotFound, body)
		return
	}
	if err != nil {
		requestLog(r).WithField("error", errors.Wrap(err, "loading conversation")).Error("request error")
		writeJSON(w, http.StatusInternalServerError, errorBody("could not load conversation"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// required returns the named query parameters, or a validation error naming
// every missing one.
func required(r *http.Request, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, n := range names {
		v := strings.TrimSpace(r.URL.Query().Get(n))
		if v == "" {
			missing = append(missing, n)
		}
		values[n] = v
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrValidation, "missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return values, nil
}

func (s *Server) handleScrapeTrains(w http.ResponseWriter, r *http.Request) {
	p, err := required(r, "url")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Trains.List(r.Context(), p["url"]))
}

func (s *Server) handleBookTrain(w http.ResponseWriter, r *http.Request) {
	var req travel.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(errors.Wrap(ErrValidation, "request body is not valid JSON").Error()))
		return
	}
	res, err := s.deps.Trains.Book(r.Context(), req)
	if errors.Is(err, travel.ErrInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		requestLog(r).WithField("error", err).Error("booking failed")
		writeJSON(w, http.StatusOK, errorBody("Booking could not be completed. Please try again."))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBuses(w http.ResponseWriter, r *http.Request) {
	p, err := required(r, "origin", "destination")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Listings.Buses(r.Context(), p["origin"], p["destination"], r.URL.Query().Get("date")))
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	p, err := required(r, "destination")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Listings.Activities(r.Context(), p["destination"], r.URL.Query().Get("date")))
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	p, err := required(r, "origin", "destination")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Listings.Flights(r.Context(), p["origin"], p["destination"], r.URL.Query().Get("date")))
}
