package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Kelp/internal/chat"
	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/models"
)

var (
	yelpNotConfigured = &config.MissingCredentialError{Name: config.EnvYelpKey, Service: "Yelp API"}
	llmNotConfigured  = &config.MissingCredentialError{Name: config.EnvOpenAIKey, Service: "AI assistant"}
)

func (s *Server) generateFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.generateFlowHandler: processing generate request", "method", r.Method, "path", r.URL.Path)

	if s.generator == nil {
		slog.Error("Server.generateFlowHandler: venue search not configured", "error", yelpNotConfigured)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(yelpNotConfigured.Error()))
		return
	}

	var req models.GenerateFlowRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.generateFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.generateFlowHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	sc := req.Scenario()
	f := s.generator.Generate(r.Context(), sc)
	slog.Info("Server.generateFlowHandler: flow generated", "id", f.ID, "stops", len(f.Stops), "location", sc.Location)
	writeJSONResponse(w, http.StatusOK, f)
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)

	if s.responder == nil {
		slog.Error("Server.chatHandler: assistant not configured", "error", llmNotConfigured)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(llmNotConfigured.Error()))
		return
	}

	var req models.ChatRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	s.sequencer.Observe(req.SessionID, req.Seq)
	reply := s.responder.Respond(r.Context(), req.Message, req.Flow, req.ConversationHistory)

	switch reply.Outcome {
	case chat.OutcomeRateLimited:
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error(reply.Message))
		return
	case chat.OutcomeQuotaExhausted:
		writeJSONResponse(w, http.StatusPaymentRequired, models.Error(reply.Message))
		return
	case chat.OutcomeProviderError:
		writeJSONResponse(w, http.StatusBadGateway, models.Error(reply.Message))
		return
	}

	resp := models.ChatResponse{
		Message:     reply.Message,
		FlowChanges: reply.FlowChanges,
		Flow:        reply.Flow,
		Seq:         req.Seq,
		Stale:       s.sequencer.Stale(req.SessionID, req.Seq),
	}
	if resp.Stale {
		slog.Debug("Server.chatHandler: reply superseded by a newer request", "session", req.SessionID, "seq", req.Seq)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"generator": s.generator != nil,
		"assistant": s.responder != nil,
		"sms":       s.sender != nil,
	})
}

// editStatus maps engine errors to HTTP status codes.
func editStatus(err error) int {
	if errors.Is(err, models.ErrStopNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
