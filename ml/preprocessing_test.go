package ml

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

type recordingObserver struct {
	fields []string
	values []any
}

func (r *recordingObserver) ObserveFallback(field string, value any) {
	r.fields = append(r.fields, field)
	r.values = append(r.values, value)
}

func transform(t *testing.T, p *Pipeline, rec Record) []float64 {
	t.Helper()
	vector, err := p.Transform(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return vector
}

func TestPipelineDeterministic(t *testing.T) {
	b := newTestBundle(t)
	predictor := NewPredictor(b, PipelineOptions{})

	first, err := predictor.Predict(meanRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstVector := transform(t, predictor.Pipeline(), meanRecord())
	for i := 0; i < 20; i++ {
		got, err := predictor.Predict(meanRecord())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("prediction changed between runs: %+v vs %+v", first, got)
		}
		if vector := transform(t, predictor.Pipeline(), meanRecord()); !reflect.DeepEqual(vector, firstVector) {
			t.Fatalf("vector changed between runs: %v vs %v", firstVector, vector)
		}
	}
	if first.Label != "notckd" {
		t.Fatalf("expected notckd for the mean record, got %s", first.Label)
	}
}

func TestPipelineImputationMatchesExplicitValue(t *testing.T) {
	b := newTestBundle(t)
	p := NewPipeline(b, PipelineOptions{})

	for _, field := range b.Schema.Order {
		t.Run(field, func(t *testing.T) {
			missing := meanRecord()
			missing[field] = nil
			explicit := meanRecord()
			explicit[field] = b.Imputation[field]

			got := transform(t, p, missing)
			want := transform(t, p, explicit)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("imputed vector %v differs from explicit vector %v", got, want)
			}
		})
	}
}

func TestPipelineUnknownCategoryFallsBack(t *testing.T) {
	b := newTestBundle(t)
	observer := &recordingObserver{}
	p := NewPipeline(b, PipelineOptions{Policy: FallbackToImputation, Observer: observer})

	tests := []struct {
		name  string
		field string
		value any
	}{
		{name: "out of vocabulary string", field: "Red_Blood_Cells", value: "weird"},
		{name: "wrong case", field: "Diabetes_Mellitus", value: "YES"},
		{name: "number for categorical", field: "Coronary_Artery_Disease", value: 1.0},
		{name: "generic whitespace is not trimmed", field: "Red_Blood_Cells", value: " normal "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := meanRecord()
			unknown[tt.field] = tt.value
			fallback := meanRecord()
			fallback[tt.field] = b.Imputation[tt.field]

			got := transform(t, p, unknown)
			want := transform(t, p, fallback)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("unknown category vector %v differs from fallback vector %v", got, want)
			}
		})
	}
	if len(observer.fields) != len(tests) {
		t.Fatalf("expected %d fallback observations, got %d", len(tests), len(observer.fields))
	}
	if observer.fields[0] != "Red_Blood_Cells" || observer.values[0] != "weird" {
		t.Fatalf("unexpected first observation: %s=%v", observer.fields[0], observer.values[0])
	}
}

func TestPipelineRejectUnknownPolicy(t *testing.T) {
	b := newTestBundle(t)
	p := NewPipeline(b, PipelineOptions{Policy: RejectUnknown})

	rec := meanRecord()
	rec["Red_Blood_Cells"] = "weird"
	_, err := p.Transform(rec)
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	var catErr *UnknownCategoryError
	if !errors.As(err, &catErr) || catErr.Field != "Red_Blood_Cells" {
		t.Fatalf("expected UnknownCategoryError for Red_Blood_Cells, got %v", err)
	}

	// null is imputed before encoding, so it never reaches the policy
	rec["Red_Blood_Cells"] = nil
	if _, err := p.Transform(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPipelineTextNormalization(t *testing.T) {
	b := newTestBundle(t)
	p := NewPredictor(b, PipelineOptions{Policy: RejectUnknown})

	tests := []struct {
		field     string
		raw       string
		canonical string
	}{
		{field: "Diabetes_Mellitus", raw: " yes", canonical: "yes"},
		{field: "Diabetes_Mellitus", raw: "\tyes", canonical: "yes"},
		{field: "Diabetes_Mellitus", raw: "\tno", canonical: "no"},
		{field: "Coronary_Artery_Disease", raw: "\tno", canonical: "no"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.canonical, func(t *testing.T) {
			raw := meanRecord()
			raw[tt.field] = tt.raw
			canonical := meanRecord()
			canonical[tt.field] = tt.canonical

			got := transform(t, p.Pipeline(), raw)
			want := transform(t, p.Pipeline(), canonical)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("normalized vector %v differs from canonical vector %v", got, want)
			}
			gotLabel, err := p.Predict(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			wantLabel, _ := p.Predict(canonical)
			if gotLabel != wantLabel {
				t.Fatalf("label %s differs from canonical label %s", gotLabel.Label, wantLabel.Label)
			}
		})
	}

	// the tab variant is not registered for Coronary_Artery_Disease "yes"
	rec := meanRecord()
	rec["Coronary_Artery_Disease"] = "\tyes"
	if _, err := p.Predict(rec); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected unregistered variant to be unknown, got %v", err)
	}
}

func TestPipelineDiabetesChangesPrediction(t *testing.T) {
	b := newTestBundle(t)
	p := NewPredictor(b, PipelineOptions{})

	rec := meanRecord()
	rec["Diabetes_Mellitus"] = "\tyes"
	got, err := p.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != "ckd" || got.Code != 0 {
		t.Fatalf("expected ckd/0, got %+v", got)
	}
}

func TestPipelineScaledWithinUnitInterval(t *testing.T) {
	b := newTestBundle(t)
	p := NewPipeline(b, PipelineOptions{})

	records := []Record{
		meanRecord(),
		{
			"Age": 2.0, "Blood_Pressure": 50.0, "Red_Blood_Cells": "abnormal",
			"Hemoglobin": 3.1, "Diabetes_Mellitus": "no", "Coronary_Artery_Disease": "no",
		},
		{
			"Age": 90.0, "Blood_Pressure": 180.0, "Red_Blood_Cells": "normal",
			"Hemoglobin": 17.8, "Diabetes_Mellitus": "yes", "Coronary_Artery_Disease": "yes",
		},
		{
			"Age": "45", "Blood_Pressure": 70, "Red_Blood_Cells": nil,
			"Hemoglobin": 15.0, "Diabetes_Mellitus": " yes", "Coronary_Artery_Disease": "\tno",
		},
	}
	for i, rec := range records {
		vector := transform(t, p, rec)
		if len(vector) != b.Schema.Len() {
			t.Fatalf("record %d: unexpected vector length %d", i, len(vector))
		}
		for j, v := range vector {
			if v < 0 || v > 1 {
				t.Fatalf("record %d: feature %s = %f outside [0,1]", i, b.Schema.Order[j], v)
			}
		}
	}
}

func TestPipelineFollowsCanonicalOrder(t *testing.T) {
	b := newTestBundle(t)
	p := NewPipeline(b, PipelineOptions{})

	rec := Record{
		"Coronary_Artery_Disease": "yes",
		"Hemoglobin":              10.0,
		"Diabetes_Mellitus":       "no",
		"Age":                     60.0,
		"Red_Blood_Cells":         "abnormal",
		"Blood_Pressure":          90.0,
		"Class":                   "ckd",
		"Unrelated":               "dropped",
	}
	stages, err := p.Run(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{60, 90, 0, 10, 0, 1}
	if !reflect.DeepEqual(stages.Numeric, want) {
		t.Fatalf("expected numeric vector %v, got %v", want, stages.Numeric)
	}
	if _, ok := stages.Imputed["Class"]; ok {
		t.Fatal("target must not survive imputation")
	}
	if _, ok := stages.Imputed["Unrelated"]; ok {
		t.Fatal("undeclared fields must be dropped")
	}
}

func TestPipelineMissingField(t *testing.T) {
	b := newTestBundle(t)

	rec := meanRecord()
	delete(rec, "Hemoglobin")

	_, err := NewPipeline(b, PipelineOptions{}).Transform(rec)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	var missing *MissingFieldError
	if !errors.As(err, &missing) || missing.Field != "Hemoglobin" {
		t.Fatalf("expected MissingFieldError for Hemoglobin, got %v", err)
	}

	lenient := NewPipeline(b, PipelineOptions{ImputeAbsent: true})
	explicit := meanRecord()
	explicit["Hemoglobin"] = nil
	if got, want := transform(t, lenient, rec), transform(t, lenient, explicit); !reflect.DeepEqual(got, want) {
		t.Fatalf("absent field vector %v differs from null field vector %v", got, want)
	}
}

func TestPipelineNonNumericValue(t *testing.T) {
	b := newTestBundle(t)
	predictor := NewPredictor(b, PipelineOptions{})

	for _, value := range []any{"abc", "", []any{1.0}, map[string]any{"v": 1.0}, "Inf"} {
		rec := meanRecord()
		rec["Age"] = value

		vector, err := predictor.Pipeline().Transform(rec)
		if err != nil {
			t.Fatalf("coercion must not fail the pipeline itself: %v", err)
		}
		if !math.IsNaN(vector[0]) && !math.IsInf(vector[0], 0) {
			t.Fatalf("expected a non-finite marker for %v, got %f", value, vector[0])
		}

		_, err = predictor.Predict(rec)
		if !errors.Is(err, ErrNonNumeric) {
			t.Fatalf("expected ErrNonNumeric for %v, got %v", value, err)
		}
		var nonNumeric *NonNumericError
		if !errors.As(err, &nonNumeric) || nonNumeric.Field != "Age" {
			t.Fatalf("expected NonNumericError for Age, got %v", err)
		}
	}
}

func TestPipelineNumericCoercion(t *testing.T) {
	b := newTestBundle(t)
	p := NewPipeline(b, PipelineOptions{})

	asString := meanRecord()
	asString["Age"] = " 51.48 "
	if got, want := transform(t, p, asString), transform(t, p, meanRecord()); !reflect.DeepEqual(got, want) {
		t.Fatalf("numeric string vector %v differs from number vector %v", got, want)
	}

	asBool := meanRecord()
	asBool["Age"] = true
	if got := transform(t, p, asBool)[0]; got != NormalizeFeature(1, 2, 90) {
		t.Fatalf("expected true to coerce to 1, got scaled %f", got)
	}
}

func TestParseUnknownCategoryPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    UnknownCategoryPolicy
		wantErr bool
	}{
		{in: "", want: FallbackToImputation},
		{in: "fallback", want: FallbackToImputation},
		{in: " Reject ", want: RejectUnknown},
		{in: "drop", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseUnknownCategoryPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseUnknownCategoryPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseUnknownCategoryPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
