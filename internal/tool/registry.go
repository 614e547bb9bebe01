// Package tool holds the invocable tools the router dispatches to.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// QuestionSchema is the input schema shared by the assistant tools: a single
// non-empty question.
const QuestionSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string", "minLength": 1}
  },
  "required": ["question"]
}`

// Input is the decoded Action Input of a routing decision.
type Input struct {
	Question string `json:"question"`
}

// Attachment is a downloadable byproduct of a tool run, such as a report file
// or a rendered chart page.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

type Output struct {
	Text        string
	Attachments []Attachment
}

type InvokeFunc func(ctx context.Context, in Input) (Output, error)

// Descriptor describes one tool. ReturnDirect tools end the routing loop with
// their output; the others feed it back to the model as an observation.
type Descriptor struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	ReturnDirect bool
	Invoke       InvokeFunc
}

var (
	ErrDuplicate   = errors.New("tool already registered")
	ErrInvalidTool = errors.New("invalid tool")
)

// UnknownToolError is returned for names no tool is registered under.
type UnknownToolError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown tool: %s", e.Name)
	}
	return fmt.Sprintf("unknown tool: %s (did you mean %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

// SchemaError reports Action Input that does not satisfy the tool's schema.
type SchemaError struct {
	Tool     string
	Location string
	Message  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input validation failed for %s at %s: %s", e.Tool, e.Location, e.Message)
}

type entry struct {
	desc   Descriptor
	schema *jsonschema.Schema
}

// Registry keeps tools in registration order. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds d. Names must be unique snake_case identifiers; an empty
// InputSchema defaults to QuestionSchema.
func (r *Registry) Register(d Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}
	if len(d.InputSchema) == 0 {
		d.InputSchema = json.RawMessage(QuestionSchema)
	}
	s, err := jsonschema.CompileString(d.Name+".json", string(d.InputSchema))
	if err != nil {
		return fmt.Errorf("%w: input schema for %s: %v", ErrInvalidTool, d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
	}
	r.tools[d.Name] = &entry{desc: d, schema: s}
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n].desc)
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Suggest returns up to limit registered names close to name, best first.
func (r *Registry) Suggest(name string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	var hits []scored
	for _, n := range r.Names() {
		target := strings.ToLower(n)
		d := fuzzy.LevenshteinDistance(name, target)
		switch {
		case fuzzy.Match(name, target), strings.Contains(name, target):
		case d <= maxDistance(target):
		default:
			continue
		}
		hits = append(hits, scored{name: n, dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]string, 0, limit)
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, h.name)
	}
	return out
}

func maxDistance(s string) int {
	if d := len(s) / 3; d > 2 {
		return d
	}
	return 2
}

// Resolve looks up name, returning an *UnknownToolError with suggestions when
// it is not registered.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	if d, ok := r.Get(name); ok {
		return d, nil
	}
	return Descriptor{}, &UnknownToolError{Name: name, Suggestions: r.Suggest(name, 3)}
}

// DecodeInput turns raw Action Input into an Input checked against the tool's
// schema. A JSON object is validated as is; any other text is taken as the
// question.
func (r *Registry) DecodeInput(name, raw string) (Input, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Input{}, &UnknownToolError{Name: name, Suggestions: r.Suggest(name, 3)}
	}

	args := map[string]any{"question": unquote(raw)}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			args = obj
		}
	}

	if err := e.schema.Validate(args); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := firstLeaf(ve)
			loc := leaf.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			return Input{}, &SchemaError{Tool: name, Location: loc, Message: leaf.Message}
		}
		return Input{}, &SchemaError{Tool: name, Location: "/", Message: err.Error()}
	}

	q, _ := args["question"].(string)
	return Input{Question: q}, nil
}

// Invoke decodes raw and calls the tool.
func (r *Registry) Invoke(ctx context.Context, name, raw string) (Output, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return Output{}, err
	}
	in, err := r.DecodeInput(name, raw)
	if err != nil {
		return Output{}, err
	}
	return d.Invoke(ctx, in)
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}
	return firstLeaf(err.Causes[0])
}

// unquote strips one level of matching quotes models like to wrap inputs in.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func validateDescriptor(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidTool)
	}
	if !isValidToolName(d.Name) {
		return fmt.Errorf("%w: %q must be snake_case with alphanumeric characters and underscores", ErrInvalidTool, d.Name)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: %s has no description", ErrInvalidTool, d.Name)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: %s has no invoke function", ErrInvalidTool, d.Name)
	}
	return nil
}

func isValidToolName(name string) bool {
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return name != ""
}
