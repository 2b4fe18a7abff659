package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// PlanFree is the plan assigned to every new profile.
	PlanFree = "free"

	ProviderPassword = "password"
	ProviderGoogle   = "google"

	maxDescriptionLen = 200
	maxNotesLen       = 500
)

type (
	// Date is a calendar date stored at UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID            string
		Description   string
		Amount        Money
		Date          Date
		Category      Category
		Notes         string
		Type          TxType
		PaymentMethod PaymentMethod
		CreditCardID  string
		CreatedAt     time.Time
	}

	CreditCard struct {
		ID         string
		Name       string
		Bank       string
		Limit      Money
		DueDay     int
		ClosingDay int
		CreatedAt  time.Time
	}

	// FixedExpense is a recurring monthly obligation. It is tracked on its
	// own and never turned into transactions automatically.
	FixedExpense struct {
		ID            string
		Description   string
		Amount        Money
		Category      Category
		PaymentMethod PaymentMethod
		DayOfMonth    int
		Notes         string
		CreditCardID  string
		CreatedAt     time.Time
	}

	User struct {
		ID           string
		Email        string
		Name         string
		Plan         string
		Provider     string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidMethod    = errors.New("invalid payment method")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrTooLong          = errors.New("text too long")
	ErrCardRequired     = errors.New("credit card required for credit payments")
	ErrCardNotAllowed   = errors.New("credit card only allowed for credit payments")
)

// NewDate creates a Date from calendar fields.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf keeps the calendar fields of t as seen in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the ISO form, e.g. "2024-03-15".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Short returns the dd/MM form used on charts and lists.
func (d Date) Short() string {
	return d.Format("02/01")
}

// BR returns the dd/MM/yyyy form.
func (d Date) BR() string {
	return d.Format("02/01/2006")
}

func validateText(s string, max int, empty error) error {
	if len(strings.TrimSpace(s)) == 0 {
		return empty
	}
	if len(s) > max {
		return fmt.Errorf("%w (max %d characters)", ErrTooLong, max)
	}
	return nil
}

func validateDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	return nil
}

// validateCard enforces that a card reference is present exactly when the
// payment method is credit.
func validateCard(method PaymentMethod, cardID string) error {
	hasCard := strings.TrimSpace(cardID) != ""
	if method == PaymentCredit && !hasCard {
		return ErrCardRequired
	}
	if method != PaymentCredit && hasCard {
		return ErrCardNotAllowed
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := validateText(t.Description, maxDescriptionLen, ErrEmptyDescription); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if !t.PaymentMethod.Valid() {
		return ErrInvalidMethod
	}
	if len(t.Notes) > maxNotesLen {
		return fmt.Errorf("%w (max %d characters)", ErrTooLong, maxNotesLen)
	}
	return validateCard(t.PaymentMethod, t.CreditCardID)
}

func (t Transaction) IsIncome() bool { return t.Type == Income }

func (t Transaction) IsExpense() bool { return t.Type == Expense }

func (c CreditCard) Validate() error {
	if err := validateText(c.Name, 100, ErrEmptyName); err != nil {
		return err
	}
	if len(c.Bank) > 100 {
		return fmt.Errorf("%w (max %d characters)", ErrTooLong, 100)
	}
	if err := c.Limit.Validate(); err != nil {
		return err
	}
	if err := validateDay(c.DueDay); err != nil {
		return fmt.Errorf("due day: %w", err)
	}
	if err := validateDay(c.ClosingDay); err != nil {
		return fmt.Errorf("closing day: %w", err)
	}
	return nil
}

func (f FixedExpense) Validate() error {
	if err := validateText(f.Description, maxDescriptionLen, ErrEmptyDescription); err != nil {
		return err
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if !f.Category.Valid() {
		return ErrInvalidCategory
	}
	if !f.PaymentMethod.Valid() {
		return ErrInvalidMethod
	}
	if err := validateDay(f.DayOfMonth); err != nil {
		return err
	}
	if len(f.Notes) > maxNotesLen {
		return fmt.Errorf("%w (max %d characters)", ErrTooLong, maxNotesLen)
	}
	return validateCard(f.PaymentMethod, f.CreditCardID)
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty email")
	}
	if strings.TrimSpace(u.Plan) == "" {
		return errors.New("empty plan")
	}
	return nil
}

// IsValidationError reports whether err comes from record validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrInvalidDate,
		ErrInvalidType, ErrInvalidCategory, ErrInvalidMethod,
		ErrEmptyDescription, ErrEmptyName, ErrTooLong,
		ErrCardRequired, ErrCardNotAllowed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
