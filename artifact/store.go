package artifact

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"kidneyserve/ml"
)

type encoderFile struct {
	Classes []string `json:"classes"`
}

// Load reads the manifest and all five artifacts from src and assembles a validated
// bundle. Any missing or corrupt artifact fails the whole load; there is no partial bundle.
func Load(src Source) (*ml.Bundle, error) {
	payload, err := src.Read(ManifestName)
	if err != nil {
		return nil, err
	}
	manifest, err := parseManifest(payload)
	if err != nil {
		return nil, err
	}
	schema, err := ml.NewSchema(manifest.Target, manifest.Fields, manifest.FeatureOrder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ManifestName, err)
	}

	var errs error
	imputation, err := loadImputation(src, manifest.Files.Imputation)
	errs = multierr.Append(errs, err)
	encoders, err := loadEncoders(src, manifest.Files.Encoders)
	errs = multierr.Append(errs, err)
	target, err := loadTargetEncoder(src, manifest.Files.TargetEncoder)
	errs = multierr.Append(errs, err)
	scaler, err := loadScaler(src, manifest.Files.Scaler)
	errs = multierr.Append(errs, err)
	classifier, err := loadClassifier(src, manifest.ModelType, manifest.Files.Model)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, fmt.Errorf("load artifacts from %s: %w", src.Describe(), errs)
	}

	bundle := &ml.Bundle{
		Schema:     schema,
		Imputation: imputation,
		Encoders:   encoders,
		Target:     target,
		Scaler:     scaler,
		Normalizer: ml.NewNormalizer(manifest.Normalization),
		Classifier: classifier,
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("validate artifacts from %s: %w", src.Describe(), err)
	}
	return bundle, nil
}

// LoadManifest returns only the parsed manifest, used to locate the artifact files.
func LoadManifest(src Source) (*Manifest, error) {
	payload, err := src.Read(ManifestName)
	if err != nil {
		return nil, err
	}
	return parseManifest(payload)
}

func decodeJSON(src Source, name string, out any) error {
	payload, err := src.Read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("parse artifact %s: %w", name, err)
	}
	return nil
}

func loadImputation(src Source, name string) (ml.ImputationTable, error) {
	var table map[string]any
	if err := decodeJSON(src, name, &table); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("artifact %s is empty", name)
	}
	return ml.ImputationTable(table), nil
}

func loadEncoders(src Source, name string) (map[string]*ml.LabelEncoder, error) {
	var files map[string]encoderFile
	if err := decodeJSON(src, name, &files); err != nil {
		return nil, err
	}
	encoders := make(map[string]*ml.LabelEncoder, len(files))
	var errs error
	for field, f := range files {
		enc, err := ml.NewLabelEncoder(f.Classes)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("artifact %s: field %s: %w", name, field, err))
			continue
		}
		encoders[field] = enc
	}
	if errs != nil {
		return nil, errs
	}
	return encoders, nil
}

func loadTargetEncoder(src Source, name string) (*ml.LabelEncoder, error) {
	var f encoderFile
	if err := decodeJSON(src, name, &f); err != nil {
		return nil, err
	}
	enc, err := ml.NewLabelEncoder(f.Classes)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", name, err)
	}
	return enc, nil
}

func loadScaler(src Source, name string) (*ml.MinMaxScaler, error) {
	var scaler ml.MinMaxScaler
	if err := decodeJSON(src, name, &scaler); err != nil {
		return nil, err
	}
	if err := scaler.Check(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", name, err)
	}
	return &scaler, nil
}

func loadClassifier(src Source, modelType, name string) (ml.Classifier, error) {
	payload, err := src.Read(name)
	if err != nil {
		return nil, err
	}
	model, err := ml.LoadModel(modelType, payload)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", name, err)
	}
	return model, nil
}
