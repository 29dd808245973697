package http

import (
	"errors"
	"net/http"

	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/middleware/trace"
	"tally/internal/ports"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	page, category, err := ParseListParams(r.URL.Query())
	if err != nil {
		if errors.Is(err, errInvalidCategory) {
			BadRequestError("Invalid category").Write(w)
		} else {
			BadRequestError("Invalid page").Write(w)
		}
		return
	}

	result, err := s.expenses.List(r.Context(), userID, page, category)
	if err != nil {
		s.logFailure(r, log.OpList, err)
		InternalServerError("Failed to load expenses").Write(w)
		return
	}
	NewJSONResponse().Body(result).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	in, err := ParseExpenseInput(w, r)
	if err != nil {
		BadRequestError("Invalid request body").Write(w)
		return
	}

	e, err := s.expenses.Create(r.Context(), userID, in)
	if err != nil {
		s.writeMutationError(w, r, log.OpCreate, err, "Failed to save expense")
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	in, err := ParseExpenseInput(w, r)
	if err != nil {
		BadRequestError("Invalid request body").Write(w)
		return
	}

	e, err := s.expenses.Update(r.Context(), r.PathValue("id"), userID, in)
	if err != nil {
		s.writeMutationError(w, r, log.OpUpdate, err, "Failed to save expense")
		return
	}
	NewJSONResponse().Body(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := s.expenses.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		s.writeMutationError(w, r, log.OpDelete, err, "Failed to delete expense")
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// writeMutationError maps service errors to responses: validation to 422
// with its message, missing or foreign records to 404, anything else to
// 500 with the action's generic message.
func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error, message string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		UnprocessableEntityError(verr.Error()).Write(w)
	case errors.Is(err, ports.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
	default:
		s.logFailure(r, op, err)
		InternalServerError(message).Write(w)
	}
}

func (s *Server) logFailure(r *http.Request, op string, err error) {
	fields := log.NewFields().
		WithRequestID(trace.GetRequestID(r.Context())).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"))
	if id, ok := auth.FromContext(r.Context()); ok {
		fields.WithUser(id.UserID)
	}
	s.access.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, fields)
}
