package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"kidneyserve/artifact"
	"kidneyserve/logging"
	"kidneyserve/ml"
)

type report struct {
	Source    string         `json:"source"`
	Policy    string         `json:"unknown_category_policy"`
	Order     []string       `json:"feature_order"`
	Imputed   map[string]any `json:"imputed"`
	Encoded   map[string]any `json:"encoded"`
	Numeric   []float64      `json:"numeric"`
	Scaled    []float64      `json:"scaled"`
	Label     string         `json:"prediction"`
	Fallbacks []string       `json:"fallbacks,omitempty"`
}

type fallbackRecorder []string

func (f *fallbackRecorder) ObserveFallback(field string, value any) {
	*f = append(*f, fmt.Sprintf("%s=%v", field, value))
}

func main() {
	artifactsPath := flag.String("artifacts", "./artifacts", "artifact directory or SQLite file")
	source := flag.String("source", "dir", "artifact source: dir or sqlite")
	recordPath := flag.String("record", "", "JSON file holding one patient record")
	packPath := flag.String("pack", "", "write the artifact directory into this SQLite file and exit")
	policyName := flag.String("policy", "fallback", "unknown category policy: fallback or reject")
	imputeAbsent := flag.Bool("impute_absent", false, "impute fields missing from the record")
	flag.Parse()

	logger, err := logging.New(logging.Config{Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *packPath != "" {
		if err := artifact.Pack(*artifactsPath, *packPath); err != nil {
			logger.Fatal("failed to pack artifacts", zap.Error(err))
		}
		fmt.Printf("artifacts packed into %s\n", *packPath)
		return
	}

	policy, err := ml.ParseUnknownCategoryPolicy(*policyName)
	if err != nil {
		logger.Fatal("invalid policy", zap.Error(err))
	}

	src, err := artifact.Open(*source, *artifactsPath)
	if err != nil {
		logger.Fatal("failed to open artifacts", zap.Error(err))
	}
	defer src.Close()

	bundle, err := artifact.Load(src)
	if err != nil {
		logger.Fatal("failed to load artifacts", zap.Error(err))
	}

	if *recordPath == "" {
		printJSON(map[string]any{
			"source":        src.Describe(),
			"target":        bundle.Schema.Target,
			"classes":       bundle.Target.Classes,
			"feature_order": bundle.Schema.Order,
			"categories":    bundle.CategoricalOptions(),
		})
		return
	}

	rec, err := readRecord(*recordPath)
	if err != nil {
		logger.Fatal("failed to read record", zap.String("path", *recordPath), zap.Error(err))
	}

	var fallbacks fallbackRecorder
	opts := ml.PipelineOptions{Policy: policy, ImputeAbsent: *imputeAbsent, Observer: &fallbacks}
	stages, err := ml.NewPipeline(bundle, opts).Run(rec)
	if err != nil {
		logger.Fatal("preprocessing failed", zap.Error(err))
	}
	prediction, err := ml.NewInvoker(bundle).Infer(stages.Scaled)
	if err != nil {
		logger.Fatal("inference failed", zap.Error(err))
	}

	printJSON(report{
		Source:    src.Describe(),
		Policy:    string(policy),
		Order:     bundle.Schema.Order,
		Imputed:   stages.Imputed,
		Encoded:   stages.Encoded,
		Numeric:   stages.Numeric,
		Scaled:    stages.Scaled,
		Label:     prediction.Label,
		Fallbacks: fallbacks,
	})
}

func readRecord(path string) (ml.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.UseNumber()
	var rec ml.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrMalformedRequest, err)
	}
	return rec, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
