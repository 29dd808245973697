package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength is counted in characters, not bytes.
const MaxDescriptionLength = 200

const dateLayout = "2006-01-02"

const (
	Food Category = iota + 1
	Transportation
	Shopping
	Entertainment
	Bills
	Healthcare
	Education
	Other
)

type (
	// Category is the closed set of expense classifications. The zero value
	// is not a valid category.
	Category uint8

	// Date is a calendar date without a time component, always in UTC.
	Date struct {
		time.Time
	}

	// Expense is a stored record owned by exactly one user.
	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Category    Category  `json:"category"`
		IsRecurring bool      `json:"isRecurring"`
		ExpenseDate Date      `json:"expenseDate"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// ExpenseFields are the user-editable parts of an expense.
	ExpenseFields struct {
		Description string
		Amount      Money
		Category    Category
		IsRecurring bool
		ExpenseDate Date
	}

	// ExpenseInput is raw form input as the user typed it.
	ExpenseInput struct {
		Description string
		Amount      string
		Category    string
		IsRecurring bool
		ExpenseDate string
	}
)

var categoryNames = [...]string{
	Food:           "Food",
	Transportation: "Transportation",
	Shopping:       "Shopping",
	Entertainment:  "Entertainment",
	Bills:          "Bills",
	Healthcare:     "Healthcare",
	Education:      "Education",
	Other:          "Other",
}

// ValidationError is a user-correctable input problem. Message is shown to
// the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrDescriptionRequired = &ValidationError{Field: "description", Message: "Description is required"}
	ErrDescriptionTooLong  = &ValidationError{Field: "description", Message: "Description too long"}
	ErrAmountNotPositive   = &ValidationError{Field: "amount", Message: "Amount must be positive"}
	ErrInvalidCategory     = &ValidationError{Field: "category", Message: "Invalid category"}
	ErrInvalidDate         = &ValidationError{Field: "expenseDate", Message: "Invalid date"}
)

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames)-1)
	for c := Food; c <= Other; c++ {
		out = append(out, c)
	}
	return out
}

// ParseCategory matches the exact, case-sensitive category name.
func ParseCategory(s string) (Category, bool) {
	for c := Food; c <= Other; c++ {
		if categoryNames[c] == s {
			return c, true
		}
	}
	return 0, false
}

func (c Category) Valid() bool {
	return c >= Food && c <= Other
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidCategory
	}
	return json.Marshal(categoryNames[c])
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseCategory(s)
	if !ok {
		return ErrInvalidCategory
	}
	*c = parsed
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the fields in the order the form shows them and returns
// the first violation.
func (f ExpenseFields) Validate() error {
	if err := validateDescription(f.Description); err != nil {
		return err
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if !f.Category.Valid() {
		return ErrInvalidCategory
	}
	if f.ExpenseDate.Validate() != nil {
		return ErrInvalidDate
	}
	return nil
}

// Parse converts raw input into validated fields. Nothing is trimmed
// before the description length check.
func (in ExpenseInput) Parse() (ExpenseFields, error) {
	if err := validateDescription(in.Description); err != nil {
		return ExpenseFields{}, err
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return ExpenseFields{}, err
	}
	category, ok := ParseCategory(in.Category)
	if !ok {
		return ExpenseFields{}, ErrInvalidCategory
	}
	date, err := ParseDate(in.ExpenseDate)
	if err != nil {
		return ExpenseFields{}, ErrInvalidDate
	}
	return ExpenseFields{
		Description: in.Description,
		Amount:      amount,
		Category:    category,
		IsRecurring: in.IsRecurring,
		ExpenseDate: date,
	}, nil
}

func validateDescription(s string) error {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return ErrDescriptionRequired
	}
	if n > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Fields returns the editable part of the record.
func (e Expense) Fields() ExpenseFields {
	return ExpenseFields{
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		IsRecurring: e.IsRecurring,
		ExpenseDate: e.ExpenseDate,
	}
}
