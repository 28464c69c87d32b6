// Package artifact loads the fitted preprocessing artifacts and the classifier once at
// startup and hands them out as an immutable ml.Bundle.
package artifact

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"kidneyserve/ml"
)

const ManifestName = "manifest.yaml"

// Manifest is the training-time metadata stored next to the artifacts. FeatureOrder is
// the persisted fit-time column order.
type Manifest struct {
	Version       int                    `yaml:"version"`
	Target        string                 `yaml:"target"`
	ModelType     string                 `yaml:"model_type"`
	Files         Files                  `yaml:"files"`
	Fields        []ml.Field             `yaml:"fields"`
	FeatureOrder  []string               `yaml:"feature_order"`
	Normalization []ml.NormalizationRule `yaml:"normalization"`
}

type Files struct {
	Imputation    string `yaml:"imputation"`
	Encoders      string `yaml:"encoders"`
	TargetEncoder string `yaml:"target_encoder"`
	Scaler        string `yaml:"scaler"`
	Model         string `yaml:"model"`
}

func DefaultFiles() Files {
	return Files{
		Imputation:    "imputation_values.json",
		Encoders:      "label_encoders.json",
		TargetEncoder: "class_label_encoder.json",
		Scaler:        "minmax_scaler.json",
		Model:         "model.json",
	}
}

func (f Files) withDefaults() Files {
	def := DefaultFiles()
	if f.Imputation == "" {
		f.Imputation = def.Imputation
	}
	if f.Encoders == "" {
		f.Encoders = def.Encoders
	}
	if f.TargetEncoder == "" {
		f.TargetEncoder = def.TargetEncoder
	}
	if f.Scaler == "" {
		f.Scaler = def.Scaler
	}
	if f.Model == "" {
		f.Model = def.Model
	}
	return f
}

// Names lists every file a bundle is assembled from, manifest first.
func (f Files) Names() []string {
	return []string{ManifestName, f.Imputation, f.Encoders, f.TargetEncoder, f.Scaler, f.Model}
}

func parseManifest(payload []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	if m.Target == "" {
		return nil, fmt.Errorf("%s: target is required", ManifestName)
	}
	if len(m.FeatureOrder) == 0 {
		return nil, fmt.Errorf("%s: feature_order is missing, the fit-time column order cannot be recovered", ManifestName)
	}
	if m.ModelType == "" {
		m.ModelType = ml.ModelTypeDecisionTree
	}
	if m.Normalization == nil {
		m.Normalization = ml.DefaultNormalizationRules()
	}
	m.Files = m.Files.withDefaults()
	return &m, nil
}
