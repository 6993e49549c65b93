package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Kelp/internal/messaging"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/store"
	"github.com/BTreeMap/Kelp/internal/util"
)

// editFlowHandler applies one UI edit (move, remove or swap) to the supplied flow.
func (s *Server) editFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.EditFlowRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.editFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.editFlowHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	out, err := s.engine.Apply(*req.Flow, req.Action, req.StopID, req.NewStop)
	if err != nil {
		slog.Warn("Server.editFlowHandler: edit rejected", "error", err, "action", req.Action, "stop_id", req.StopID)
		writeJSONResponse(w, editStatus(err), models.Error(err.Error()))
		return
	}
	slog.Debug("Server.editFlowHandler: edit applied", "action", req.Action, "stop_id", req.StopID, "stops", len(out.Stops))
	writeJSONResponse(w, http.StatusOK, models.FlowResponse{Flow: out})
}

// applyChangesHandler applies a chat edit instruction the client accepted.
func (s *Server) applyChangesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.ApplyChangesRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.applyChangesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Flow == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrMissingFlow.Error()))
		return
	}

	out := s.engine.ApplyEdit(*req.Flow, req.FlowChanges)
	slog.Debug("Server.applyChangesHandler: changes applied", "noop", req.FlowChanges.IsNoop(), "stops", len(out.Stops))
	writeJSONResponse(w, http.StatusOK, models.FlowResponse{Flow: out})
}

// shareFlowHandler stores a snapshot of the posted flow and returns its share id.
func (s *Server) shareFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var f models.Flow
	if err := decodeJSONBody(w, r, &f); err != nil {
		slog.Warn("Server.shareFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	f.RecomputeTotal()
	if err := f.Validate(); err != nil {
		slog.Warn("Server.shareFlowHandler: invalid flow", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	id := util.GenerateShareID()
	if err := s.st.SaveFlow(r.Context(), id, f); err != nil {
		slog.Error("Server.shareFlowHandler: failed to store flow", "error", err, "flow_id", f.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store flow"))
		return
	}
	slog.Info("Server.shareFlowHandler: flow shared", "id", id, "flow_id", f.ID)
	writeJSONResponse(w, http.StatusCreated, models.ShareFlowResponse{ID: id})
}

func (s *Server) getSharedFlowHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sf, err := s.st.GetFlow(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, id)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.FlowResponse{Flow: sf.Flow})
}

// sendFlowHandler texts a shared flow to the listed phone numbers.
func (s *Server) sendFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.sender == nil {
		slog.Warn("Server.sendFlowHandler: SMS sharing not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("SMS sharing not configured"))
		return
	}

	id := r.PathValue("id")
	var req models.SendFlowRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.sendFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	sf, err := s.st.GetFlow(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, id)
		return
	}

	link := ""
	if s.shareBaseURL != "" {
		link = s.shareBaseURL + "/" + id
	}
	resp, err := s.sender.SendFlow(r.Context(), sf.Flow, link, req.To)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, messaging.ErrNoRecipients) || errors.Is(err, messaging.ErrTooManyRecipients) {
			status = http.StatusBadRequest
		}
		slog.Warn("Server.sendFlowHandler: send failed", "error", err, "id", id)
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, store.ErrFlowNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	slog.Error("Server.writeStoreError: failed to load flow", "error", err, "id", id)
	writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load flow"))
}
