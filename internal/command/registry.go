package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Handler executes one command type.
type Handler interface {
	Handle(ctx context.Context, params Params) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, params Params) (any, error) {
	return f(ctx, params)
}

// Spec binds a command type to its handler. Schema, when set, is a JSON
// Schema the params object must satisfy before the handler runs.
type Spec struct {
	Type        string
	Description string
	Handler     Handler
	Schema      string
}

// Feature names a flag that gates a conditional handler set.
type Feature string

// FeatureMarketplace gates the third-party asset marketplace handlers.
const FeatureMarketplace Feature = "marketplace"

// Features is the set of enabled feature flags.
type Features map[Feature]bool

// Enabled reports whether f is on.
func (fs Features) Enabled(f Feature) bool {
	return fs[f]
}

// Clone returns an independent copy.
func (fs Features) Clone() Features {
	out := make(Features, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Catalog is every handler the bridge knows, before feature gating.
type Catalog struct {
	// Status builds the context-independent status query. It is always
	// registered and sees the feature set the table was built with.
	Status func(Features) Spec

	Base        []Spec
	Conditional map[Feature][]Spec
}

type entry struct {
	spec   Spec
	schema *gojsonschema.Schema
}

// Table is the capability table resolved from a Catalog and a feature set.
// It is immutable once built.
type Table struct {
	features    Features
	status      *entry
	base        map[string]*entry
	conditional map[string]*entry
}

// NewTable resolves a catalog against the enabled features. Conditional
// sets whose flag is off are left out entirely.
func NewTable(catalog Catalog, features Features) (*Table, error) {
	t := &Table{
		features:    features.Clone(),
		base:        make(map[string]*entry),
		conditional: make(map[string]*entry),
	}

	if catalog.Status != nil {
		e, err := compile(catalog.Status(t.features))
		if err != nil {
			return nil, err
		}
		t.status = e
	}

	for _, spec := range catalog.Base {
		if err := t.add(t.base, spec); err != nil {
			return nil, err
		}
	}

	flags := make([]string, 0, len(catalog.Conditional))
	for f := range catalog.Conditional {
		flags = append(flags, string(f))
	}
	sort.Strings(flags)
	for _, f := range flags {
		if !t.features.Enabled(Feature(f)) {
			continue
		}
		for _, spec := range catalog.Conditional[Feature(f)] {
			if err := t.add(t.conditional, spec); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

func (t *Table) add(set map[string]*entry, spec Spec) error {
	if _, dup := t.lookup(spec.Type); dup {
		return fmt.Errorf("duplicate handler for command type %q", spec.Type)
	}
	e, err := compile(spec)
	if err != nil {
		return err
	}
	set[spec.Type] = e
	return nil
}

func compile(spec Spec) (*entry, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("handler spec without a command type")
	}
	if spec.Handler == nil {
		return nil, fmt.Errorf("command type %q has no handler", spec.Type)
	}
	e := &entry{spec: spec}
	if spec.Schema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(spec.Schema))
		if err != nil {
			return nil, fmt.Errorf("invalid params schema for %q: %w", spec.Type, err)
		}
		e.schema = schema
	}
	return e, nil
}

// lookup resolves the status query first, then the base set, then the
// conditional set.
func (t *Table) lookup(commandType string) (*entry, bool) {
	if t.status != nil && t.status.spec.Type == commandType {
		return t.status, true
	}
	if e, ok := t.base[commandType]; ok {
		return e, true
	}
	e, ok := t.conditional[commandType]
	return e, ok
}

// Has reports whether a command type resolves to a handler.
func (t *Table) Has(commandType string) bool {
	_, ok := t.lookup(commandType)
	return ok
}

// Features returns the feature set the table was built with.
func (t *Table) Features() Features {
	return t.features.Clone()
}

// Types lists every resolvable command type, sorted.
func (t *Table) Types() []string {
	var out []string
	if t.status != nil {
		out = append(out, t.status.spec.Type)
	}
	for k := range t.base {
		out = append(out, k)
	}
	for k := range t.conditional {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Describe returns the description registered for a command type.
func (t *Table) Describe(commandType string) string {
	if e, ok := t.lookup(commandType); ok {
		return e.spec.Description
	}
	return ""
}

// SchemaError reports params that fail a handler's JSON Schema.
type SchemaError struct {
	Command string
	Details []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("Invalid params for %s: %s", e.Command, strings.Join(e.Details, "; "))
}

func (e *entry) validate(params Params) error {
	if e.schema == nil {
		return nil
	}
	if params == nil {
		params = Params{}
	}
	result, err := e.schema.Validate(gojsonschema.NewGoLoader(map[string]any(params)))
	if err != nil {
		return &SchemaError{Command: e.spec.Type, Details: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return &SchemaError{Command: e.spec.Type, Details: details}
}

// Call validates params and runs the handler for commandType directly,
// without tracing, observation or view handling. Panics are returned as
// *PanicError.
func (t *Table) Call(ctx context.Context, commandType string, params Params) (any, error) {
	e, ok := t.lookup(commandType)
	if !ok {
		return nil, fmt.Errorf("Unknown command type: %s", commandType)
	}
	if params == nil {
		params = Params{}
	}
	if err := e.validate(params); err != nil {
		return nil, err
	}
	return invoke(ctx, e.spec.Handler, params)
}
