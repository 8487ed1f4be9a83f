// Package actions is the catalog of generic remote calls: a name and an opaque
// JSON body decoded into a typed request, answered by a stream of envelopes.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/telemetry"
)

// Emit sends one response of an action to the caller
type Emit func(response any) error

// Descriptor describes a registered action
type Descriptor struct {
	Name        string
	Description string
}

type action struct {
	Descriptor
	schema *jsonschema.Schema
	decode func(body []byte) (any, error)
	handle func(ctx context.Context, req any, emit Emit) error
}

// Request is a decoded action call
type Request struct {
	action *action
	Value  any
}

// Name returns the action name
func (r *Request) Name() string {
	return r.action.Name
}

// Catalog maps action names to their decoder and handler
type Catalog struct {
	actions   map[string]*action
	limiter   *rate.Limiter
	telemetry *telemetry.Instruments
}

// Option configures a Catalog
type Option func(*Catalog)

// WithRateLimit caps dispatched actions per second; zero disables the limit
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Catalog) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithTelemetry traces every dispatch
func WithTelemetry(in *telemetry.Instruments) Option {
	return func(c *Catalog) {
		c.telemetry = in
	}
}

// NewCatalog creates an empty catalog
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{actions: make(map[string]*action)}
	for _, o := range opts {
		o(c)
	}
	if c.telemetry == nil {
		c.telemetry = telemetry.Noop()
	}
	return c
}

// Register adds an action whose body must validate against schema and decode into Req
func Register[Req any](c *Catalog, name, description, schema string, handle func(ctx context.Context, req Req, emit Emit) error) error {
	if _, ok := c.actions[name]; ok {
		return errors.Errorf("action '%s' is already registered", name)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://mosaicod.local/actions/%s.schema.json", name)
	if err := compiler.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		return errors.Wrapf(err, "action '%s' schema load failed", name)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return errors.Wrapf(err, "action '%s' schema compile failed", name)
	}

	c.actions[name] = &action{
		Descriptor: Descriptor{Name: name, Description: description},
		schema:     compiled,
		decode: func(body []byte) (any, error) {
			var req Req
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
			return req, nil
		},
		handle: func(ctx context.Context, req any, emit Emit) error {
			return handle(ctx, req.(Req), emit)
		},
	}
	return nil
}

// Actions lists registered actions ordered by name
func (c *Catalog) Actions() []Descriptor {
	out := make([]Descriptor, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, a.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Decode validates body against the action schema and decodes it.
// It fails with ports.ErrUnknownAction or ports.ErrMalformedBody.
func (c *Catalog) Decode(name string, body []byte) (*Request, error) {
	a, ok := c.actions[name]
	if !ok {
		return nil, errors.Wrapf(ports.ErrUnknownAction, "'%s'", name)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(ports.ErrMalformedBody, "'%s': %v", name, err)
	}
	if dec.More() {
		return nil, errors.Wrapf(ports.ErrMalformedBody, "'%s': trailing data after body", name)
	}
	if err := a.schema.Validate(doc); err != nil {
		return nil, errors.Wrapf(ports.ErrMalformedBody, "'%s': %v", name, err)
	}
	value, err := a.decode(body)
	if err != nil {
		return nil, errors.Wrapf(ports.ErrMalformedBody, "'%s': %v", name, err)
	}
	return &Request{action: a, Value: value}, nil
}

// Dispatch decodes and runs an action, sending each response wrapped in an envelope.
// An action may send zero, one or many envelopes; an error may follow sent envelopes.
func (c *Catalog) Dispatch(ctx context.Context, name string, body []byte, send func(Envelope) error) (err error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return errors.Wrapf(ports.ErrRateLimited, "action '%s'", name)
	}

	ctx, end := c.telemetry.Track(ctx, "do_action", attribute.String("action", name))
	defer func() { end(err) }()

	req, err := c.Decode(name, body)
	if err != nil {
		return err
	}
	return req.action.handle(ctx, req.Value, func(response any) error {
		env, err := NewEnvelope(name, response)
		if err != nil {
			return err
		}
		return send(env)
	})
}
