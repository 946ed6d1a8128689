package http

import (
	"net/http"

	"budgets/internal/core"
)

type categoryPage struct {
	page
	Budget   core.Budget
	Category core.Category
	Days     []core.DayEntries
	Form     entryForm
}

type categoryEditPage struct {
	page
	Budget   core.Budget
	Category core.Category
	Form     categoryForm
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	budgetID := r.PathValue("id")
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := categoryForm{Name: field(v, "name"), Kind: field(v, "kind"), Planned: field(v, "planned")}

	in, err := parseNewCategory(v)
	if err == nil {
		var c core.Category
		c, err = s.budgets.AddCategory(r.Context(), userID(r), budgetID, in)
		if err == nil {
			s.mutated()
			s.redirect(w, r, categoryURL(budgetID, c.ID))
			return
		}
	}
	if !isInputError(err) {
		s.handleError(w, r, err)
		return
	}

	view, verr := s.budgets.Budget(r.Context(), userID(r), budgetID)
	if verr != nil {
		s.handleError(w, r, verr)
		return
	}
	p := budgetPage{
		page:      privatePage(view.Budget.Name, view.User),
		Budget:    view.Budget,
		Summary:   view.Summary,
		IsCurrent: view.IsCurrent,
		Form:      form,
	}
	p.Error = userMessage(err)
	s.render(w, r, http.StatusUnprocessableEntity, "budget.html", p)
}

func (s *Server) handleShowCategory(w http.ResponseWriter, r *http.Request) {
	s.renderCategory(w, r, http.StatusOK, entryForm{}, nil)
}

// renderCategory shows a category page; a non-nil formErr is displayed
// above the add-entry form.
func (s *Server) renderCategory(w http.ResponseWriter, r *http.Request, status int, form entryForm, formErr error) {
	v, err := s.budgets.Category(r.Context(), userID(r), r.PathValue("id"), r.PathValue("cid"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	p := categoryPage{
		page:     privatePage(v.Category.Name, nil),
		Budget:   v.Budget,
		Category: v.Category,
		Days:     v.Days,
		Form:     form,
	}
	if formErr != nil {
		p.Error = userMessage(formErr)
	}
	s.render(w, r, status, "category.html", p)
}

func (s *Server) handleEditCategoryForm(w http.ResponseWriter, r *http.Request) {
	v, err := s.budgets.Category(r.Context(), userID(r), r.PathValue("id"), r.PathValue("cid"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "category_edit.html", categoryEditPage{
		page:     privatePage("Edit "+v.Category.Name, nil),
		Budget:   v.Budget,
		Category: v.Category,
		Form: categoryForm{
			Name:    v.Category.Name,
			Kind:    string(v.Category.Kind),
			Planned: v.Category.Planned.String(),
		},
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID := r.PathValue("id"), r.PathValue("cid")
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	patch, err := parseCategoryPatch(v)
	if err == nil && patch.Empty() {
		if _, err := s.budgets.Category(r.Context(), userID(r), budgetID, categoryID); err != nil {
			s.handleError(w, r, err)
			return
		}
		s.redirect(w, r, categoryURL(budgetID, categoryID))
		return
	}
	if err == nil {
		_, err = s.budgets.UpdateCategory(r.Context(), userID(r), budgetID, categoryID, patch)
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

	view, verr := s.budgets.Category(r.Context(), userID(r), budgetID, categoryID)
	if verr != nil {
		s.handleError(w, r, verr)
		return
	}
	p := categoryEditPage{
		page:     privatePage("Edit "+view.Category.Name, nil),
		Budget:   view.Budget,
		Category: view.Category,
		Form:     categoryForm{Name: field(v, "name"), Kind: field(v, "kind"), Planned: field(v, "planned")},
	}
	p.Error = userMessage(err)
	s.render(w, r, http.StatusUnprocessableEntity, "category_edit.html", p)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	budgetID := r.PathValue("id")
	if err := s.budgets.RemoveCategory(r.Context(), userID(r), budgetID, r.PathValue("cid")); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	s.redirect(w, r, budgetURL(budgetID))
}
