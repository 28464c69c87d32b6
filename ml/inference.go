package ml

import (
	"fmt"
	"math"
)

type Prediction struct {
	Label string `json:"prediction"`
	Code  int    `json:"-"`
}

// Invoker runs the classifier on a scaled vector and decodes its output label.
type Invoker struct {
	order      []string
	classifier Classifier
	target     *LabelEncoder
}

func NewInvoker(b *Bundle) *Invoker {
	return &Invoker{
		order:      b.Schema.Order,
		classifier: b.Classifier,
		target:     b.Target,
	}
}

func (inv *Invoker) Infer(vector []float64) (Prediction, error) {
	if len(vector) != len(inv.order) {
		return Prediction{}, fmt.Errorf("feature vector has %d values, classifier expects %d", len(vector), len(inv.order))
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, &NonNumericError{Field: inv.order[i]}
		}
	}
	code, err := inv.classifier.Predict(vector)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier: %w", err)
	}
	label, err := inv.target.Decode(code)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, Code: code}, nil
}

// Predictor chains the preprocessing pipeline and the invoker for one record.
type Predictor struct {
	pipeline *Pipeline
	invoker  *Invoker
}

func NewPredictor(b *Bundle, opts PipelineOptions) *Predictor {
	return &Predictor{
		pipeline: NewPipeline(b, opts),
		invoker:  NewInvoker(b),
	}
}

func (p *Predictor) Predict(rec Record) (Prediction, error) {
	vector, err := p.pipeline.Transform(rec)
	if err != nil {
		return Prediction{}, err
	}
	return p.invoker.Infer(vector)
}

func (p *Predictor) Pipeline() *Pipeline {
	return p.pipeline
}
