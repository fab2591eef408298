package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/scraper"
	"github.com/danpilch/tripdesk/internal/travel"
)

const instruction = `You are a helpful trip planning assistant.
First call parse_trip_request to understand the user's request, then call the tools that match the detected intents:
search_flights for flights, search_trains for trains, search_buses for buses, search_hotels for hotels,
search_activities for things to do, local_guides for tour guides and nearby_places for restaurants,
hospitals, car rentals and attractions. Use web_search for anything else.
When showing trains, keep the index numbers and coach classes so the user can choose one.
Only call book_train after the user has picked a train index and a coach class; pass the listing url
from search_trains. Booking stops at the checkout page, never claim that a ticket was paid for.
Consolidate the results into a clear, organized answer.`

var ErrToolLimit = errors.New("tool call limit reached")

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI runs a Gemini model with the tool registry declared as functions.
type GenAI struct {
	models    generator
	model     string
	maxRounds int
	registry  *Registry
	logger    *logrus.Logger
}

func NewGenAI(ctx context.Context, apiKey, model string, maxRounds int, registry *Registry, logger *logrus.Logger) (*GenAI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newGenAI(client.Models, model, maxRounds, registry, logger), nil
}

func newGenAI(models generator, model string, maxRounds int, registry *Registry, logger *logrus.Logger) *GenAI {
	if maxRounds <= 0 {
		maxRounds = 6
	}
	return &GenAI{
		models:    models,
		model:     model,
		maxRounds: maxRounds,
		registry:  registry,
		logger:    logger,
	}
}

func (g *GenAI) Name() string { return "genai" }

func (g *GenAI) Respond(ctx context.Context, req Request) (*Reply, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: declarations(g.registry)}},
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	prompt := req.Query
	if url := req.contextString(ContextListingURL); url != "" {
		prompt += "\n\n(Last train listing url: " + url + ")"
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	reply := &Reply{Context: map[string]any{}}
	var data []any

	for round := 0; round < g.maxRounds; round++ {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("generating content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, fmt.Errorf("generating content: empty response")
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			reply.Message = resp.Text()
			reply.Display = reply.Message
			if len(data) > 0 {
				reply.Data = data
			}
			return reply, nil
		}

		contents = append(contents, resp.Candidates[0].Content)
		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			log := g.logger.WithFields(logrus.Fields{
				"conversation_id": req.ConversationID,
				"tool":            call.Name,
				"round":           round + 1,
			})
			out, err := g.registry.Call(ctx, call.Name, Args(call.Args))
			if err != nil {
				log.WithField("error", err).Warn("tool call failed")
			} else {
				log.Debug("tool called")
				data = append(data, out)
				remember(reply, out)
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: toolResponse(out, err),
			}})
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	return nil, fmt.Errorf("%w after %d rounds", ErrToolLimit, g.maxRounds)
}

func remember(reply *Reply, out any) {
	if l, ok := out.(*travel.Listing); ok && l.Result != nil && l.Status == scraper.StatusSuccess && l.Kind == catalog.KindTrain {
		reply.Context[ContextListingURL] = l.URL
		reply.Context[ContextKind] = string(l.Kind)
	}
}

// toolResponse turns a tool result into the JSON object genai expects.
func toolResponse(out any, err error) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		var v any
		_ = json.Unmarshal(b, &v)
		return map[string]any{"output": v}
	}
	return m
}

func declarations(r *Registry) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, t := range r.Tools() {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Params)),
		}
		for _, p := range t.Params {
			typ := genai.TypeString
			if p.Type == ParamInteger {
				typ = genai.TypeInteger
			}
			schema.Properties[p.Name] = &genai.Schema{Type: typ, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return decls
}
