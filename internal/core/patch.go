package core

import "strings"

// Patch overwrites the fields it carries on a target and leaves the rest alone.
type Patch[T any] interface {
	Apply(target *T) error
}

// ApplyPartialUpdate applies patch to target, a value owned by b (or b itself),
// and recomputes b. Nothing is written when the patch fails validation or
// would push a total out of range.
func ApplyPartialUpdate[T any](b *Budget, target *T, patch Patch[T]) error {
	prev := *target
	if err := patch.Apply(target); err != nil {
		return err
	}
	if err := checkTotals(b); err != nil {
		*target = prev
		return err
	}
	Recompute(b)
	return nil
}

// EntryPatch updates an entry. PostedDate is a "YYYY-MM-DD" value; when set
// without PostedDay, the day is taken from the date.
type EntryPatch struct {
	Name       *string
	PostedDay  *int
	PostedDate *string
	Amount     *Money
}

func (p EntryPatch) Apply(e *Entry) error {
	next := *e
	if p.Name != nil {
		if err := validateName("name", *p.Name, maxEntryNameLength); err != nil {
			return err
		}
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.PostedDate != nil {
		if *p.PostedDate == "" {
			next.PostedDate = ""
		} else {
			posted, day, err := FormatPostedDate(*p.PostedDate)
			if err != nil {
				return err
			}
			next.PostedDate = posted
			if p.PostedDay == nil {
				next.PostedDay = day
			}
		}
	}
	if p.PostedDay != nil {
		if !validDay(*p.PostedDay) {
			return Invalid("postedDay", "must be between 1 and 31")
		}
		next.PostedDay = *p.PostedDay
	}
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	*e = next
	return nil
}

// Empty reports whether the patch carries no field.
func (p EntryPatch) Empty() bool {
	return p.Name == nil && p.PostedDay == nil && p.PostedDate == nil && p.Amount == nil
}

// CategoryPatch updates a category's own fields. Totals are never patched.
type CategoryPatch struct {
	Name    *string
	Kind    *CategoryKind
	Planned *Money
}

func (p CategoryPatch) Apply(c *Category) error {
	next := *c
	if p.Name != nil {
		if err := validateName("name", *p.Name, maxNameLength); err != nil {
			return err
		}
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Kind != nil {
		if !p.Kind.Valid() {
			return Invalid("kind", "must be income, savings or expenses")
		}
		next.Kind = *p.Kind
	}
	if p.Planned != nil {
		if p.Planned.Cents < 0 {
			return Invalid("planned", "must not be negative")
		}
		next.Planned = *p.Planned
	}
	*c = next
	return nil
}

func (p CategoryPatch) Empty() bool {
	return p.Name == nil && p.Kind == nil && p.Planned == nil
}

// BudgetPatch moves a budget to another period.
type BudgetPatch struct {
	Period *Period
}

func (p BudgetPatch) Apply(b *Budget) error {
	if p.Period != nil {
		b.Period = *p.Period
	}
	return nil
}
