// Package ledger holds the expense ledger and settings domain model and
// the service that persists both documents through the encrypted remote
// store.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// PaymentStatus tracks whether a scheduled payment has happened.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusPaid    PaymentStatus = "PAID"
	StatusFailed  PaymentStatus = "FAILED"
)

// Periodicity is how often an expense recurs.
type Periodicity string

const (
	Monthly    Periodicity = "MONTHLY"
	Bimonthly  Periodicity = "BIMONTHLY"
	Quarterly  Periodicity = "QUARTERLY"
	FourMonth  Periodicity = "FOURMONTH"
	Semiannual Periodicity = "SEMIANNUAL"
	Annual     Periodicity = "ANNUAL"
)

// Fraction identifies the installment when a payment is split.
type Fraction string

const (
	Single Fraction = "SINGLE"
	First  Fraction = "FIRST"
	Second Fraction = "SECOND"
	Third  Fraction = "THIRD"
	Fourth Fraction = "FOURTH"
)

// Expense is one recurring payment obligation. Amount and date fields
// travel as JSON numbers and ISO-8601 strings; nullable fields are
// pointers so "not yet paid" is distinguishable from zero values.
type Expense struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	Issuer               string           `json:"issuer"`
	Tag                  string           `json:"tag"`
	Category             string           `json:"category"`
	ApproximateAmount    float64          `json:"approximateAmount"`
	ScheduledPaymentDate strfmt.DateTime  `json:"scheduledPaymentDate"`
	ActualPaymentDate    *strfmt.DateTime `json:"actualPaymentDate"`
	ActualAmount         *float64         `json:"actualAmount"`
	PaymentStatus        PaymentStatus    `json:"paymentStatus"`
	Bank                 string           `json:"bank"`
	Periodicity          Periodicity      `json:"periodicity"`
	Fraction             Fraction         `json:"fraction"`
	CreatedAt            strfmt.DateTime  `json:"createdAt"`
}

// Settings holds the configurable category and tag lists. Display order
// is preserved; uniqueness is case-insensitive.
type Settings struct {
	Categories  []string        `json:"categories"`
	Tags        []string        `json:"tags"`
	LastUpdated strfmt.DateTime `json:"lastUpdated"`
}

// DefaultSettings returns the settings used when no settings document
// exists yet.
func DefaultSettings() Settings {
	return Settings{
		Categories: []string{
			"Subministraments",
			"Lloguer/Hipoteca",
			"Assegurança",
			"Subscripcions",
			"Telecomunicacions",
			"Salut",
			"Oci",
			"Educació",
		},
		Tags: []string{
			"Hogar",
			"Transporte",
			"Entretenimiento",
			"Salud",
			"Formación",
			"Personal",
		},
		LastUpdated: strfmt.DateTime(time.Now().UTC()),
	}
}

// ValidationError accumulates every problem found in one record, so the
// caller can report all of them at once instead of fixing one at a time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, ", ")
}

var validStatuses = map[PaymentStatus]bool{
	StatusPending: true, StatusPaid: true, StatusFailed: true,
}

var validPeriodicities = map[Periodicity]bool{
	Monthly: true, Bimonthly: true, Quarterly: true,
	FourMonth: true, Semiannual: true, Annual: true,
}

var validFractions = map[Fraction]bool{
	Single: true, First: true, Second: true, Third: true, Fourth: true,
}

// Validate checks every field of e and returns a ValidationError naming
// each problem, or nil when the expense is well formed.
func (e *Expense) Validate() error {
	var problems []string

	for _, f := range []struct{ name, value string }{
		{"name", e.Name},
		{"description", e.Description},
		{"issuer", e.Issuer},
		{"category", e.Category},
		{"bank", e.Bank},
	} {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, f.name+" is required")
		}
	}

	if e.ApproximateAmount < 0 {
		problems = append(problems, "approximate amount must not be negative")
	}
	if e.ActualAmount != nil && *e.ActualAmount < 0 {
		problems = append(problems, "actual amount must not be negative")
	}

	scheduled := time.Time(e.ScheduledPaymentDate)
	if scheduled.IsZero() {
		problems = append(problems, "scheduled payment date is required")
	}
	if e.ActualPaymentDate != nil {
		actual := time.Time(*e.ActualPaymentDate)
		if !scheduled.IsZero() && actual.Before(scheduled) {
			problems = append(problems, "actual payment date must not be before the scheduled payment date")
		}
	}

	if !validStatuses[e.PaymentStatus] {
		problems = append(problems, fmt.Sprintf("payment status %q is not valid", e.PaymentStatus))
	}
	if !validPeriodicities[e.Periodicity] {
		problems = append(problems, fmt.Sprintf("periodicity %q is not valid", e.Periodicity))
	}
	if !validFractions[e.Fraction] {
		problems = append(problems, fmt.Sprintf("fraction %q is not valid", e.Fraction))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
