package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bontonsw/grievbot/internal/complaints"
)

// errorBody is the JSON error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// closeRequest is the body of POST /close-complaint/{id}.
type closeRequest struct {
	ResolutionNote string `json:"resolution_note,omitempty"`
}

// closeResponse acknowledges a resolved complaint.
type closeResponse struct {
	ComplaintID string `json:"complaint_id"`
	Message     string `json:"message"`
}

// Register adds the complaint API routes to mux. The shapes match what
// [complaints.HTTPClient] decodes, so the two sides can be paired without
// translation.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /fetch-customer/{id}", s.handleFetchCustomer)
	mux.HandleFunc("GET /pending-complaints/{id}", s.handlePendingComplaints)
	mux.HandleFunc("GET /issue-types", s.handleIssueTypes)
	mux.HandleFunc("POST /new-complaint", s.handleNewComplaint)
	mux.HandleFunc("POST /close-complaint/{id}", s.handleCloseComplaint)
}

func (s *Service) handleFetchCustomer(w http.ResponseWriter, r *http.Request) {
	cust, err := s.FetchCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Customer not found")
		return
	}
	writeJSON(w, http.StatusOK, cust)
}

func (s *Service) handlePendingComplaints(w http.ResponseWriter, r *http.Request) {
	list, err := s.ListPendingComplaints(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Customer not found")
		return
	}
	if list.Items == nil {
		// Keep the wire shape stable: [] rather than null.
		list.Items = []complaints.PendingComplaint{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Service) handleIssueTypes(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ListIssueCategories(r.Context())
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Service) handleNewComplaint(w http.ResponseWriter, r *http.Request) {
	var nc complaints.NewComplaint
	if err := json.NewDecoder(r.Body).Decode(&nc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	receipt, err := s.CreateComplaint(r.Context(), nc)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Service) handleCloseComplaint(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if r.Body != nil {
		// The note is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	rec, err := s.CloseComplaint(r.Context(), r.PathValue("id"), req.ResolutionNote)
	if err != nil {
		writeError(w, err, "Complaint not found")
		return
	}
	writeJSON(w, http.StatusOK, closeResponse{
		ComplaintID: rec.ComplaintID,
		Message:     "Complaint " + rec.ComplaintID + " resolved.",
	})
}

// writeError maps the service error kinds onto HTTP statuses. notFoundMsg
// overrides the body text for 404s, matching the wording API consumers
// already depend on.
func writeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, complaints.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "Not found"
		}
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFoundMsg})
	case errors.Is(err, complaints.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// writeJSON encodes v with the given status. Encoding failures fall back to
// a plain 500; by then the status line may already be out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
