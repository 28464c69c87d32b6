package ml

import (
	"errors"
	"math"
	"testing"
)

func TestDecisionTreePredict(t *testing.T) {
	model := &DecisionTree{}
	payload := []byte(`[
		{"feature_idx": 0, "threshold": 0.5, "left_child": 1, "right_child": 2, "is_leaf": false},
		{"feature_idx": -1, "left_child": -1, "right_child": -1, "class_label": 0, "is_leaf": true},
		{"feature_idx": 1, "threshold": 0.3, "left_child": 3, "right_child": 4, "is_leaf": false},
		{"feature_idx": -1, "left_child": -1, "right_child": -1, "class_label": 0, "is_leaf": true},
		{"feature_idx": -1, "left_child": -1, "right_child": -1, "class_label": 1, "is_leaf": true}
	]`)
	if err := model.Unmarshal(payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := model.Validate(2, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		features []float64
		want     int
	}{
		{features: []float64{0.1, 0.9}, want: 0},
		{features: []float64{0.5, 0.9}, want: 0},
		{features: []float64{0.9, 0.2}, want: 0},
		{features: []float64{0.9, 0.8}, want: 1},
	}
	for _, tt := range tests {
		label, err := model.Predict(tt.features)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != tt.want {
			t.Fatalf("Predict(%v) = %d, want %d", tt.features, label, tt.want)
		}
	}

	if _, err := model.Predict([]float64{math.NaN(), 0}); !errors.Is(err, ErrNonNumeric) {
		t.Fatalf("expected ErrNonNumeric, got %v", err)
	}
	if _, err := model.Predict([]float64{0.9}); err == nil {
		t.Fatal("expected error for short feature vector")
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	model := &DecisionTree{}
	if _, err := model.Predict([]float64{0.1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
	if err := model.Unmarshal([]byte(`[]`)); err == nil {
		t.Fatal("expected error for empty tree")
	}
	if err := model.Unmarshal([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for corrupt tree")
	}
}

func TestDecisionTreeValidate(t *testing.T) {
	tests := []struct {
		name  string
		nodes []TreeNode
	}{
		{
			name: "leaf label out of range",
			nodes: []TreeNode{
				{IsLeaf: true, ClassLabel: 2},
			},
		},
		{
			name: "child points backwards",
			nodes: []TreeNode{
				{FeatureIdx: 0, Threshold: 0.5, LeftChild: 0, RightChild: 1},
				{IsLeaf: true, ClassLabel: 0},
			},
		},
		{
			name: "child missing",
			nodes: []TreeNode{
				{FeatureIdx: 0, Threshold: 0.5, LeftChild: 1, RightChild: 7},
				{IsLeaf: true, ClassLabel: 0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDecisionTree(tt.nodes).Validate(1, 2); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadModel(t *testing.T) {
	payload := []byte(`[{"feature_idx": -1, "class_label": 1, "is_leaf": true}]`)
	model, err := LoadModel(ModelTypeDecisionTree, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, err := model.Predict([]float64{0.4})
	if err != nil || label != 1 {
		t.Fatalf("expected label 1, got %d (%v)", label, err)
	}
	if _, err := LoadModel("random_forest", payload); err == nil {
		t.Fatal("expected error for unsupported model type")
	}
}
