package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/showbox88/GTPinput/internal/core"
	"github.com/showbox88/GTPinput/internal/log"
	"github.com/showbox88/GTPinput/internal/services"
)

// handleRun runs one recurring pass for the owner and returns its summary.
// Rule level failures are reported inside the summary with status 200.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	now, err := parseRunTime(r, s.now(), s.location)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.processor.ProcessDueObligations(r.Context(), owner, now)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Recurring run rejected", err, log.ComponentHTTP, log.OpProcess, log.LogFields{log.FieldOwnerID: owner})
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, r, status, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// handleRules lists active rules on GET, creates a rule on POST, replaces
// one on PUT and removes one on DELETE.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRules(w, r)
	case http.MethodPost:
		s.createRule(w, r)
	case http.MethodPut:
		s.updateRule(w, r)
	case http.MethodDelete:
		s.deleteRule(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST, PUT, DELETE")
	}
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	rules, err := s.store.ListActiveRules(ctx, owner)
	if err != nil {
		s.storeFailure(w, r, "List rules failed", log.OpList, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, newRuleResponse(rule))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := req.toRule(s.location)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	id, err := s.store.CreateRule(ctx, rule)
	if err != nil {
		s.storeFailure(w, r, "Create rule failed", log.OpCreate, err)
		return
	}
	rule.ID = id

	log.FromContext(r.Context()).InfoContext(r.Context(), "Rule created",
		log.FieldRuleID, id,
		log.FieldOwnerID, rule.OwnerID,
		log.FieldRuleName, rule.Name,
		"schedule", rule.Schedule.String())
	writeJSON(w, r, http.StatusCreated, newRuleResponse(rule))
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseRuleID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := req.toRule(s.location)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rule.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		if errors.Is(err, core.ErrRuleNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		s.storeFailure(w, r, "Update rule failed", log.OpUpdate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Rule updated",
		log.FieldRuleID, id,
		log.FieldOwnerID, rule.OwnerID,
		"schedule", rule.Schedule.String())
	writeJSON(w, r, http.StatusOK, newRuleResponse(rule))
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseRuleID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.store.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, core.ErrRuleNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		s.storeFailure(w, r, "Delete rule failed", log.OpDelete, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Rule deleted", log.FieldRuleID, id)
	w.WriteHeader(http.StatusNoContent)
}

// handleRuleActive enables or disables a rule.
func (s *Server) handleRuleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, active, err := parseRuleActive(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.store.SetRuleActive(ctx, id, active); err != nil {
		if errors.Is(err, core.ErrRuleNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		s.storeFailure(w, r, "Update rule failed", log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEntries lists the owner's ledger.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		s.storeFailure(w, r, "List entries failed", log.OpList, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, log.ComponentStorage, op, nil)
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	writeError(w, r, status, services.ErrStoreUnavailable.Error())
}
