package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"kidneyserve/ml"
	"kidneyserve/monitoring"
)

const serviceName = "kidney-disease-predictor"

func RegisterHandlers(mux *http.ServeMux, svc *Service) {
	mux.HandleFunc("GET /{$}", handleHealth)
	mux.HandleFunc("POST /predict", svc.handlePredict)
	mux.HandleFunc("GET /schema", svc.handleSchema)
	mux.HandleFunc("GET /metrics", svc.handleMetrics)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

func (svc *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r)
	if err != nil {
		svc.writeError(w, r, err)
		return
	}

	prediction, err := svc.Predictor.Predict(rec)
	if err != nil {
		svc.writeError(w, r, err)
		return
	}

	if svc.Metrics != nil {
		svc.Metrics.RecordPrediction(prediction.Label)
	}
	svc.Logger.Debug("prediction",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("label", prediction.Label),
	)
	respondJSON(w, http.StatusOK, prediction)
}

type fieldInfo struct {
	Name    string        `json:"name"`
	Kind    ml.Kind       `json:"kind"`
	Impute  ml.ImputeRule `json:"impute"`
	Options []string      `json:"options,omitempty"`
}

func (svc *Service) handleSchema(w http.ResponseWriter, r *http.Request) {
	options := svc.Bundle.CategoricalOptions()
	features := svc.Bundle.Schema.Features()

	fields := make([]fieldInfo, len(features))
	for i, f := range features {
		fields[i] = fieldInfo{Name: f.Name, Kind: f.Kind, Impute: f.Impute, Options: options[f.Name]}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"target":                  svc.Bundle.Schema.Target,
		"classes":                 svc.Bundle.Target.Classes,
		"feature_order":           svc.Bundle.Schema.Order,
		"fields":                  fields,
		"unknown_category_policy": svc.Predictor.Pipeline().Policy(),
	})
}

func (svc *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if svc.Metrics == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}

	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(svc.Metrics.ExportPrometheus()))
		return
	}

	fallbacks := []monitoring.FallbackEntry{}
	if svc.Fallbacks != nil {
		fallbacks = svc.Fallbacks.Entries()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    svc.Metrics.GetUptime().String(),
		"counters":  svc.Metrics.GetAllMetrics(),
		"fallbacks": fallbacks,
	})
}

// writeError maps every prediction failure to 400 with a short message. The full error
// only goes to the log.
func (svc *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errorKind(err)
	if svc.Metrics != nil {
		svc.Metrics.RecordError(kind)
	}

	message := err.Error()
	switch kind {
	case "label_out_of_range", "internal":
		message = "prediction failed"
	}

	svc.Logger.Warn("prediction rejected",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("kind", kind),
		zap.Error(err),
	)
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ml.ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ml.ErrMissingField):
		return "missing_field"
	case errors.Is(err, ml.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ml.ErrNonNumeric):
		return "non_numeric"
	case errors.Is(err, ml.ErrLabelOutOfRange):
		return "label_out_of_range"
	default:
		return "internal"
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}
