package ml

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ImputationTable holds the training-time fill value per field: a number for continuous
// fields and a category string for categorical ones.
type ImputationTable map[string]any

// Bundle is the full set of fitted artifacts. It is built once at startup and shared
// read-only by every request.
type Bundle struct {
	Schema     *Schema
	Imputation ImputationTable
	Encoders   map[string]*LabelEncoder
	Target     *LabelEncoder
	Scaler     *MinMaxScaler
	Normalizer *Normalizer
	Classifier Classifier
}

// Validate cross-checks the artifacts against each other and reports every problem found.
func (b *Bundle) Validate() error {
	if b.Schema == nil || b.Scaler == nil || b.Target == nil || b.Classifier == nil {
		return errors.New("bundle is incomplete")
	}

	var err error
	if scalerErr := b.Scaler.Check(); scalerErr != nil {
		err = multierr.Append(err, scalerErr)
	} else if len(b.Scaler.FeatureNames) != len(b.Schema.Order) {
		err = multierr.Append(err, fmt.Errorf("scaler was fit on %d features, feature order has %d",
			len(b.Scaler.FeatureNames), len(b.Schema.Order)))
	} else {
		for i, name := range b.Schema.Order {
			if b.Scaler.FeatureNames[i] != name {
				err = multierr.Append(err, fmt.Errorf("feature order mismatch at position %d: scaler has %s, schema has %s",
					i, b.Scaler.FeatureNames[i], name))
			}
		}
	}

	if b.Target.Len() != 2 {
		err = multierr.Append(err, fmt.Errorf("target encoder must have 2 classes, has %d", b.Target.Len()))
	}

	for _, f := range b.Schema.Features() {
		fill, ok := b.Imputation[f.Name]
		if !ok || fill == nil {
			err = multierr.Append(err, fmt.Errorf("no imputation value for %s", f.Name))
			continue
		}
		switch f.Kind {
		case KindContinuous:
			if _, numeric := coerceNumeric(fill); !numeric {
				err = multierr.Append(err, fmt.Errorf("imputation value for %s is not numeric: %v", f.Name, fill))
			}
		case KindCategorical:
			enc, ok := b.Encoders[f.Name]
			if !ok {
				err = multierr.Append(err, fmt.Errorf("no encoder for categorical field %s", f.Name))
				continue
			}
			s, isString := fill.(string)
			if !isString || !enc.Contains(s) {
				err = multierr.Append(err, fmt.Errorf("imputation value %v for %s is not a known category", fill, f.Name))
			}
		}
	}

	if inspectable, ok := b.Classifier.(Inspectable); ok {
		if treeErr := inspectable.Validate(len(b.Schema.Order), b.Target.Len()); treeErr != nil {
			err = multierr.Append(err, fmt.Errorf("classifier: %w", treeErr))
		}
	}
	return err
}

// CategoricalOptions lists the known categories of every categorical feature.
func (b *Bundle) CategoricalOptions() map[string][]string {
	out := make(map[string][]string)
	for _, f := range b.Schema.Features() {
		if f.Kind != KindCategorical {
			continue
		}
		if enc, ok := b.Encoders[f.Name]; ok {
			out[f.Name] = append([]string(nil), enc.Classes...)
		}
	}
	return out
}
