package ml

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindContinuous  Kind = "continuous"
	KindCategorical Kind = "categorical"
)

type ImputeRule string

const (
	ImputeMean   ImputeRule = "mean"
	ImputeMedian ImputeRule = "median"
	ImputeMode   ImputeRule = "mode"
)

type Field struct {
	Name   string     `yaml:"name" json:"name"`
	Kind   Kind       `yaml:"kind" json:"kind"`
	Impute ImputeRule `yaml:"impute" json:"impute"`
}

// Schema describes the training-time columns. Order is the literal column order the
// scaler and classifier were fit on and is never rebuilt from Fields.
type Schema struct {
	Target string   `yaml:"target" json:"target"`
	Fields []Field  `yaml:"fields" json:"fields"`
	Order  []string `yaml:"feature_order" json:"feature_order"`

	index map[string]int
}

func NewSchema(target string, fields []Field, order []string) (*Schema, error) {
	s := &Schema{
		Target: target,
		Fields: append([]Field(nil), fields...),
		Order:  append([]string(nil), order...),
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) build() error {
	if len(s.Order) == 0 {
		return errors.New("feature order is empty")
	}
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return fmt.Errorf("field %s declared twice", f.Name)
		}
		switch f.Kind {
		case KindContinuous, KindCategorical:
		default:
			return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
		}
		s.index[f.Name] = i
	}
	seen := make(map[string]bool, len(s.Order))
	for _, name := range s.Order {
		if name == s.Target {
			return fmt.Errorf("target %s must not appear in feature order", name)
		}
		if seen[name] {
			return fmt.Errorf("feature %s appears twice in feature order", name)
		}
		seen[name] = true
		if _, ok := s.index[name]; !ok {
			return fmt.Errorf("feature %s in order is not declared", name)
		}
	}
	return nil
}

func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Features returns the fields in canonical order.
func (s *Schema) Features() []Field {
	out := make([]Field, 0, len(s.Order))
	for _, name := range s.Order {
		f, _ := s.Field(name)
		out = append(out, f)
	}
	return out
}

func (s *Schema) Len() int {
	return len(s.Order)
}
