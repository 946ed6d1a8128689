package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"budgets/internal/core"
	"budgets/internal/export"
	"budgets/internal/log"
	"budgets/internal/services"
)

type dashboardPage struct {
	page
	HasCurrent bool
	Budget     core.Budget
	Summary    core.BudgetSummary
	IsCurrent  bool
	Form       categoryForm
}

type budgetsPage struct {
	page
	Years     []core.YearBudgets
	CurrentID string
}

type budgetFormPage struct {
	page
	Budget core.Budget
	Month  string
}

// budgetPage renders one budget with the add-category form.
type budgetPage struct {
	page
	Budget    core.Budget
	Summary   core.BudgetSummary
	IsCurrent bool
	Form      categoryForm
}

// categoryForm keeps submitted values when the form is shown again.
type categoryForm struct {
	Name    string
	Kind    string
	Planned string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.budgets.Dashboard(r.Context(), userID(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", dashboardPage{
		page:       privatePage("Dashboard", d.User),
		HasCurrent: d.HasCurrent,
		Budget:     d.Budget,
		Summary:    d.Summary,
		IsCurrent:  d.HasCurrent,
		Form:       categoryForm{Kind: string(core.KindExpenses)},
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	u, years, err := s.budgets.ListBudgets(r.Context(), userID(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "budgets.html", budgetsPage{
		page:      privatePage("Budgets", u),
		Years:     years,
		CurrentID: u.CurrentBudgetID,
	})
}

func (s *Server) handleNewBudgetForm(w http.ResponseWriter, r *http.Request) {
	u, _, err := s.budgets.ListBudgets(r.Context(), userID(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	now := time.Now()
	s.render(w, r, http.StatusOK, "budget_new.html", budgetFormPage{
		page:  privatePage("New budget", u),
		Month: core.NewPeriod(now.Year(), int(now.Month())).Token(),
	})
}

// handleCreateBudget sends the user to the dashboard when the new budget is
// their only one, since it has just become current.
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	month := field(v, "month")
	b, only, err := s.budgets.CreateBudget(r.Context(), userID(r), month)
	if err != nil {
		if isInputError(err) {
			s.renderBudgetForm(w, r, "budget_new.html", "New budget", budgetFormPage{Month: month}, err)
			return
		}
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	if only {
		s.redirect(w, r, "/dashboard")
		return
	}
	s.redirect(w, r, budgetURL(b.ID))
}

func (s *Server) handleShowBudget(w http.ResponseWriter, r *http.Request) {
	v, err := s.budgets.Budget(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if v.IsCurrent {
		s.redirect(w, r, "/dashboard")
		return
	}
	s.renderBudget(w, r, http.StatusOK, v, categoryForm{Kind: string(core.KindExpenses)})
}

func (s *Server) handleEditBudgetForm(w http.ResponseWriter, r *http.Request) {
	v, err := s.budgets.Budget(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "budget_edit.html", budgetFormPage{
		page:   privatePage("Edit "+v.Budget.Name, v.User),
		Budget: v.Budget,
		Month:  v.Budget.Token(),
	})
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	month := field(v, "month")
	if _, err := s.budgets.UpdateBudget(r.Context(), userID(r), id, month); err != nil {
		if isInputError(err) {
			view, verr := s.budgets.Budget(r.Context(), userID(r), id)
			if verr != nil {
				s.handleError(w, r, verr)
				return
			}
			s.renderBudgetForm(w, r, "budget_edit.html", "Edit "+view.Budget.Name,
				budgetFormPage{Budget: view.Budget, Month: month}, err)
			return
		}
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	s.redirect(w, r, budgetURL(id))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.DeleteBudget(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	s.redirect(w, r, "/budgets")
}

func (s *Server) handleSetCurrentBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.SetCurrentBudget(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.mutated()
	s.redirect(w, r, "/dashboard")
}

// handleExportBudget streams the budget as an XLSX workbook.
func (s *Server) handleExportBudget(w http.ResponseWriter, r *http.Request) {
	v, err := s.budgets.Budget(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBudgetWorkbook(&buf, v.User, v.Budget); err != nil {
		s.handleError(w, r, fmt.Errorf("export budget %s: %w", v.Budget.ID, err))
		return
	}
	s.metrics.exports.Add(1)
	log.FromContext(r.Context()).WithComponent(log.ComponentExport).InfoContext(r.Context(), "Budget exported",
		log.FieldOperation, log.OpExport,
		log.FieldUserID, v.User.ID,
		log.FieldBudgetID, v.Budget.ID)

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(v.Budget)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderBudget(w http.ResponseWriter, r *http.Request, status int, v *services.BudgetView, form categoryForm) {
	s.render(w, r, status, "budget.html", budgetPage{
		page:      privatePage(v.Budget.Name, v.User),
		Budget:    v.Budget,
		Summary:   v.Summary,
		IsCurrent: v.IsCurrent,
		Form:      form,
	})
}

func (s *Server) renderBudgetForm(w http.ResponseWriter, r *http.Request, tmpl, title string, form budgetFormPage, err error) {
	u, _, lerr := s.budgets.ListBudgets(r.Context(), userID(r))
	if lerr != nil {
		s.handleError(w, r, lerr)
		return
	}
	form.page = privatePage(title, u)
	form.Error = userMessage(err)
	s.render(w, r, http.StatusUnprocessableEntity, tmpl, form)
}

func (s *Server) mutated() {
	s.metrics.mutations.Add(1)
}

func budgetURL(id string) string {
	return "/budgets/" + id
}

func categoryURL(budgetID, categoryID string) string {
	return budgetURL(budgetID) + "/categories/" + categoryID
}
