package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
	"github.com/showbox88/GTPinput/internal/log"
)

type ruleResponse struct {
	ID        int64      `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Amount    core.Money `json:"amount"`
	Category  string     `json:"category"`
	Frequency string     `json:"frequency"`
	Anchor    int        `json:"anchor"`
	Schedule  string     `json:"schedule"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

type entryResponse struct {
	ID       int64      `json:"id"`
	OwnerID  string     `json:"owner_id"`
	Date     core.Date  `json:"date"`
	Item     string     `json:"item"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Note     string     `json:"note,omitempty"`
	Source   string     `json:"source"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newRuleResponse(r core.RecurringRule) ruleResponse {
	return ruleResponse{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Amount:    r.Amount,
		Category:  string(r.Category),
		Frequency: string(r.Schedule.Frequency),
		Anchor:    r.Schedule.Anchor,
		Schedule:  r.Schedule.String(),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

func newEntryResponse(e core.LedgerEntry) entryResponse {
	return entryResponse{
		ID:       e.ID,
		OwnerID:  e.OwnerID,
		Date:     e.Date,
		Item:     e.Item,
		Amount:   e.Amount,
		Category: string(e.Category),
		Note:     e.Note,
		Source:   e.Source,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg, RequestID: w.Header().Get("X-Request-ID")})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
