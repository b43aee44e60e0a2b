package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cashcast/internal/core"
	"cashcast/internal/log"
	"cashcast/internal/services"
)

type trainTargetSummary struct {
	Algo           core.Algo `json:"algo"`
	MAEVal         float64   `json:"mae_val"`
	BaselineMAEVal float64   `json:"baseline_mae_val"`
	ResidStd       float64   `json:"resid_std"`
}

type trainResponse struct {
	ModelName   string                        `json:"model_name"`
	RunID       string                        `json:"run_id,omitempty"`
	Granularity core.Granularity              `json:"granularity"`
	TrainedAt   time.Time                     `json:"trained_at"`
	Lags        int                           `json:"lags"`
	StartPeriod string                        `json:"start_period,omitempty"`
	EndPeriod   string                        `json:"end_period,omitempty"`
	Warning     string                        `json:"warning,omitempty"`
	Targets     map[string]trainTargetSummary `json:"targets"`
}

type queuedResponse struct {
	ModelName string `json:"model_name"`
	Status    string `json:"status"`
}

func newTrainResponse(res services.TrainResult) trainResponse {
	p := res.Payload
	out := trainResponse{
		ModelName:   res.Name,
		RunID:       p.RunID,
		Granularity: p.Granularity,
		TrainedAt:   p.TrainedAt,
		Lags:        p.Lags,
		StartPeriod: p.StartPeriod,
		EndPeriod:   p.EndPeriod,
		Warning:     p.Warning,
		Targets:     make(map[string]trainTargetSummary, len(p.Targets)),
	}
	for name, t := range p.Targets {
		out.Targets[name] = trainTargetSummary{Algo: t.Algo, MAEVal: t.MAEVal, BaselineMAEVal: t.BaselineMAEVal, ResidStd: t.ResidStd}
	}
	return out
}

// handleTrain trains synchronously, or queues the run when async is set.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	params, err := ParseTrainRequest(r)
	if err != nil {
		s.writeError(w, r, err, log.OpTrain)
		return
	}

	if params.Async {
		name, err := s.api.RequestTraining(r.Context(), params.Request)
		if err != nil {
			s.writeError(w, r, err, log.OpTrain)
			return
		}
		NewJSONResponse().Status(http.StatusAccepted).Body(queuedResponse{ModelName: name, Status: "queued"}).Write(w)
		return
	}

	res, err := s.api.Train(r.Context(), params.Request)
	if err != nil {
		s.writeError(w, r, err, log.OpTrain)
		return
	}
	NewJSONResponse().Body(newTrainResponse(res)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := ParseTransaction(r)
	if err != nil {
		s.writeError(w, r, err, log.OpSave)
		return
	}
	id, err := s.api.RecordTransaction(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, log.OpSave)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]int64{"id": id}).Write(w)
}

func (s *Server) handleForecastDaily(w http.ResponseWriter, r *http.Request) {
	q, err := ParseForecastQuery(core.Daily, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, log.OpForecast)
		return
	}
	res, err := s.api.ForecastDaily(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err, log.OpForecast)
		return
	}
	if r.URL.Query().Get("format") == "list" {
		NewJSONResponse().Body(res.Series).Write(w)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleForecastMonthly(w http.ResponseWriter, r *http.Request) {
	q, err := ParseForecastQuery(core.Monthly, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, log.OpForecast)
		return
	}
	res, err := s.api.ForecastMonthly(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err, log.OpForecast)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// writeError maps validation errors to 422, unknown models to 404 and the rest to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		UnprocessableEntityError(ve.Field, err.Error()).Write(w)
	case errors.Is(err, services.ErrModelNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery))
		InternalServerError("internal error").Write(w)
	}
}
