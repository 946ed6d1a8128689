package http

import (
	"net/http"
	"net/url"
	"strconv"

	"budgets/internal/core"
)

// entryForm keeps submitted entry values when the form is shown again.
type entryForm struct {
	Name       string
	Amount     string
	PostedDate string
	PostedDay  string
}

type entryEditPage struct {
	page
	Budget   core.Budget
	Category core.Category
	Entry    core.Entry
	Form     entryForm
}

func submittedEntry(v url.Values) entryForm {
	return entryForm{
		Name:       field(v, "name"),
		Amount:     field(v, "amount"),
		PostedDate: field(v, "postedDate"),
		PostedDay:  field(v, "postedDay"),
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID := r.PathValue("id"), r.PathValue("cid")
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	in, err := parseNewEntry(v)
	if err == nil {
		_, err = s.budgets.AddEntry(r.Context(), userID(r), budgetID, categoryID, in)
		if err == nil {
			s.mutated()
			s.redirect(w, r, categoryURL(budgetID, categoryID))
			return
		}
	}
	if !isInputError(err) {
		s.handleError(w, r, err)
		return
	}
	s.renderCategory(w, r, http.StatusUnprocessableEntity, submittedEntry(v), err)
}

func (s *Server) handleEditEntryForm(w http.ResponseWriter, r *http.Request) {
	v, err := s.budgets.Entry(r.Context(), userID(r), r.PathValue("id"), r.PathValue("cid"), r.PathValue("eid"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "entry_edit.html", entryEditPage{
		page:     privatePage("Edit "+v.Entry.Name, nil),
		Budget:   v.Budget,
		Category: v.Category,
		Entry:    v.Entry,
		Form:     entryFormFor(v.Entry),
	})
}

func entryFormFor(e core.Entry) entryForm {
	f := entryForm{
		Name:       e.Name,
		Amount:     e.Amount.String(),
		PostedDate: core.PostedDateISO(e.PostedDate),
	}
	if e.PostedDay > 0 {
		f.PostedDay = strconv.Itoa(e.PostedDay)
	}
	return f
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID, entryID := r.PathValue("id"), r.PathValue("cid"), r.PathValue("eid")
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	patch, err := parseEntryPatch(v)
	if err == nil && patch.Empty() {
		// Nothing submitted: confirm the entry exists and skip the save.
		if _, err := s.budgets.Entry(r.Context(), userID(r), budgetID, categoryID, entryID); err != nil {
			s.handleError(w, r, err)
			return
		}
		s.redirect(w, r, categoryURL(budgetID, categoryID))
		return
	}
	if err == nil {
		_, err = s.budgets.UpdateEntry(r.Context(), userID(r), budgetID, categoryID, entryID, patch)
		if err == nil {
			s.mutated()
			s.redirect(w, r, categoryURL(budgetID, categoryID))
			return
		}
	}
	if !isInputError(err) {
		s.handleError(w, r, err)
		return
	}

	view, verr := s.budgets.Entry(r.Context(), userID(r), budgetID, categoryID, entryID)
	if verr != nil {
		s.handleError(w, r, verr)
		return
	}
	p := entryEditPage{
		page:     privatePage("Edit "+view.Entry.Name, nil),
		Budget:   view.Budget,
		Category: view.Category,
		Entry:    view.Entry,
		Form:     submittedEntry(v),
	}
	p.Error = userMessage(err)
	s.render(w, r, http.StatusUnprocessableEntity, "entry_edit.html", p)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID := r.PathValue("id"), r.PathValue("cid")
	if err := s.budgets.RemoveEntry(r.Context(), userID(r), budgetID, categoryID, r.PathValue("eid")); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	s.redirect(w, r, categoryURL(budgetID, categoryID))
}
