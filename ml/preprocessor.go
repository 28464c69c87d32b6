package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one decoded request body: field name to raw JSON value.
type Record map[string]any

// UnknownCategoryPolicy decides what happens to a categorical value outside the encoder's
// vocabulary.
type UnknownCategoryPolicy string

const (
	// FallbackToImputation encodes the field's imputation value instead. It favours
	// availability: the request is answered, possibly with a less accurate prediction.
	FallbackToImputation UnknownCategoryPolicy = "fallback"
	// RejectUnknown fails the request with an UnknownCategoryError.
	RejectUnknown UnknownCategoryPolicy = "reject"
)

func ParseUnknownCategoryPolicy(s string) (UnknownCategoryPolicy, error) {
	switch UnknownCategoryPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FallbackToImputation:
		return FallbackToImputation, nil
	case RejectUnknown:
		return RejectUnknown, nil
	default:
		return "", fmt.Errorf("unknown category policy %q", s)
	}
}

// FallbackObserver is told about every value that was replaced by the fallback category.
type FallbackObserver interface {
	ObserveFallback(field string, value any)
}

type PipelineOptions struct {
	Policy UnknownCategoryPolicy
	// ImputeAbsent treats a key missing from the record like an explicit null.
	ImputeAbsent bool
	Observer     FallbackObserver
}

// Stages exposes the intermediate results of one Run.
type Stages struct {
	Imputed map[string]any
	Encoded map[string]any
	Numeric []float64
	Scaled  []float64
}

type Pipeline struct {
	bundle *Bundle
	opts   PipelineOptions
}

func NewPipeline(b *Bundle, opts PipelineOptions) *Pipeline {
	if opts.Policy == "" {
		opts.Policy = FallbackToImputation
	}
	return &Pipeline{bundle: b, opts: opts}
}

func (p *Pipeline) Policy() UnknownCategoryPolicy {
	return p.opts.Policy
}

// Transform maps a raw record to the scaled feature vector in canonical order.
func (p *Pipeline) Transform(rec Record) ([]float64, error) {
	stages, err := p.Run(rec)
	if err != nil {
		return nil, err
	}
	return stages.Scaled, nil
}

// Run applies impute, normalize, encode, reorder, coerce and scale, in that order.
// The scaler and classifier were fit on data processed in exactly this sequence.
func (p *Pipeline) Run(rec Record) (*Stages, error) {
	imputed, err := p.impute(rec)
	if err != nil {
		return nil, err
	}
	p.normalize(imputed)
	encoded, err := p.encode(imputed)
	if err != nil {
		return nil, err
	}
	ordered := p.reorder(encoded)
	numeric := coerceVector(ordered)
	scaled, err := p.bundle.Scaler.Transform(numeric)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	return &Stages{
		Imputed: imputed,
		Encoded: encoded,
		Numeric: numeric,
		Scaled:  scaled,
	}, nil
}

func (p *Pipeline) impute(rec Record) (map[string]any, error) {
	schema := p.bundle.Schema
	for _, name := range schema.Order {
		if _, ok := rec[name]; !ok && !p.opts.ImputeAbsent {
			return nil, &MissingFieldError{Field: name}
		}
	}

	out := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Name == schema.Target {
			continue
		}
		value, present := rec[f.Name]
		if !present && !p.opts.ImputeAbsent {
			continue
		}
		if value == nil {
			value = p.bundle.Imputation[f.Name]
		}
		out[f.Name] = value
	}
	return out, nil
}

func (p *Pipeline) normalize(values map[string]any) {
	for name, value := range values {
		values[name] = p.bundle.Normalizer.Apply(name, value)
	}
}

func (p *Pipeline) encode(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for name, value := range values {
		f, _ := p.bundle.Schema.Field(name)
		if f.Kind != KindCategorical {
			out[name] = value
			continue
		}
		enc, ok := p.bundle.Encoders[name]
		if !ok {
			return nil, fmt.Errorf("no encoder for categorical field %s", name)
		}
		if s, isString := value.(string); isString {
			if code, known := enc.Encode(s); known {
				out[name] = code
				continue
			}
		}
		if p.opts.Policy == RejectUnknown {
			return nil, &UnknownCategoryError{Field: name, Value: value}
		}
		fill, _ := p.bundle.Imputation[name].(string)
		code, known := enc.Encode(fill)
		if !known {
			return nil, fmt.Errorf("fallback category %q for %s is not encodable", fill, name)
		}
		if p.opts.Observer != nil {
			p.opts.Observer.ObserveFallback(name, value)
		}
		out[name] = code
	}
	return out, nil
}

func (p *Pipeline) reorder(values map[string]any) []any {
	order := p.bundle.Schema.Order
	out := make([]any, len(order))
	for i, name := range order {
		out[i] = values[name]
	}
	return out
}

func coerceVector(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := coerceNumeric(v)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

func coerceNumeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
