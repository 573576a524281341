package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"routekit/internal/testdata"
	"routekit/internal/types"
	"routekit/pkg/endpoint"
)

// Suggester asks a language model for realistic request payloads
type Suggester struct {
	client Completer
	log    zerolog.Logger
}

// NewSuggester creates a Suggester backed by client
func NewSuggester(client Completer, log zerolog.Logger) *Suggester {
	return &Suggester{client: client, log: log}
}

// SuggestPayload asks for values for the keys of template. The result keeps
// the template's keys in the template's order; a key the reply leaves out
// keeps its template value. An empty template accepts the reply as is.
func (s *Suggester) SuggestPayload(ctx context.Context, op types.Operation, template *endpoint.Values) (*endpoint.Values, error) {
	templateJSON, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}

	prompt := fmt.Sprintf(`Generate a realistic request payload for the %s operation.

**Endpoint**: %s %s
**Summary**: %s

### Payload template:
%s

Fill every key of the template with a realistic value of the same type.
Keep the key names exactly as given. Respond with the JSON object only.`,
		op.ID, op.Shape.Method, op.Shape.URITemplate, op.Summary, templateJSON)

	response, err := s.client.Complete(ctx, prompt)
	if err != nil {
		s.logInteraction(op, prompt, "", err)
		return nil, fmt.Errorf("failed to suggest payload: %w", err)
	}

	reply := endpoint.NewValues()
	if err := json.Unmarshal([]byte(extractJSON(response)), reply); err != nil {
		s.logInteraction(op, prompt, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	s.logInteraction(op, prompt, response, nil)

	if template.Len() == 0 {
		return reply, nil
	}
	out := endpoint.NewValues()
	template.Range(func(key string, val any) bool {
		if suggested, ok := reply.Get(key); ok && suggested != nil {
			val = suggested
		}
		out.Set(key, val)
		return true
	})
	return out, nil
}

// SuggestFixture replaces the fixture's body or form data with a suggestion,
// following the operation's body encoding
func (s *Suggester) SuggestFixture(ctx context.Context, op types.Operation, fixture testdata.Fixture) (testdata.Fixture, error) {
	switch op.BodyEncoding {
	case types.BodyJSON:
		body, err := s.SuggestPayload(ctx, op, fixture.Body)
		if err != nil {
			return fixture, err
		}
		fixture.Body = body
	case types.BodyForm:
		form, err := s.SuggestPayload(ctx, op, fixture.FormData)
		if err != nil {
			return fixture, err
		}
		fixture.FormData = form
	}
	return fixture, nil
}

func (s *Suggester) logInteraction(op types.Operation, prompt, response string, err error) {
	event := s.log.Debug()
	if err != nil {
		event = s.log.Warn().Err(err)
	}
	event.Str("operation", op.ID).
		Int("prompt_bytes", len(prompt)).
		Str("response", response).
		Msg("llm interaction")
}

// extractJSON strips a markdown code fence around the reply, if any
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	response = strings.TrimPrefix(response, "```")
	if i := strings.IndexByte(response, '\n'); i >= 0 {
		response = response[i+1:]
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	return strings.TrimSpace(response)
}
