package core

import (
	"time"
)

const (
	isoDateLayout    = "2006-01-02"
	postedDateLayout = "01/02/2006"
)

// FormatPostedDate turns a date input value ("2024-03-15") into the stored
// "03/15/2024" form and returns its day of month.
func FormatPostedDate(iso string) (string, int, error) {
	t, err := time.Parse(isoDateLayout, iso)
	if err != nil {
		return "", 0, Invalid("postedDate", "expected YYYY-MM-DD")
	}
	return t.Format(postedDateLayout), t.Day(), nil
}

// PostedDateISO converts a stored "MM/DD/YYYY" date back to the date input form.
// It returns "" for empty or malformed values.
func PostedDateISO(posted string) string {
	t, err := time.Parse(postedDateLayout, posted)
	if err != nil {
		return ""
	}
	return t.Format(isoDateLayout)
}

func validDay(day int) bool {
	return day >= 1 && day <= 31
}
