package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/oriolbns/despesa/codec"
	"github.com/oriolbns/despesa/store"
)

// Document names on the remote store.
const (
	ExpensesDocument = "expenses.json"
	SettingsDocument = "settings.json"
)

var (
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrTagNotFound      = errors.New("tag not found")
)

// Keyer supplies the document encryption key for the current session.
// *session.Gate implements it.
type Keyer interface {
	Key() ([]byte, error)
}

// Service reads and writes the two ledger documents through the remote
// store, encrypting when a session gate is configured. A nil gate means
// plaintext mode: documents are stored as readable JSON.
type Service struct {
	gate  Keyer
	store *store.Store
}

// NewService creates a Service. gate may be nil for plaintext
// deployments.
func NewService(gate Keyer, st *store.Store) *Service {
	return &Service{gate: gate, store: st}
}

// key resolves the encryption key for the current session. Plaintext
// mode yields a nil key; an authenticated session that cannot produce
// its key fails fast instead of silently writing plaintext.
func (s *Service) key() ([]byte, error) {
	if s.gate == nil {
		return nil, nil
	}
	key, err := s.gate.Key()
	if err != nil {
		return nil, fmt.Errorf("resolving session key: %w", err)
	}
	return key, nil
}

// ReadExpenses fetches and decodes the expense ledger. An absent
// document is an empty ledger, not an error.
func (s *Service) ReadExpenses(ctx context.Context) ([]Expense, error) {
	key, err := s.key()
	if err != nil {
		return nil, err
	}

	content, _, err := s.store.Read(ctx, ExpensesDocument)
	if errors.Is(err, store.ErrNotFound) {
		return []Expense{}, nil
	}
	if err != nil {
		return nil, err
	}

	var expenses []Expense
	if err := codec.Parse(content, key, &expenses); err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	return expenses, nil
}

// WriteExpenses encodes and writes the whole expense ledger.
func (s *Service) WriteExpenses(ctx context.Context, expenses []Expense) error {
	key, err := s.key()
	if err != nil {
		return err
	}
	content, err := codec.Prepare(expenses, key)
	if err != nil {
		return err
	}
	_, err = s.store.Write(ctx, ExpensesDocument, content)
	return err
}

// ReadSettings fetches and decodes the settings document, substituting
// defaults when it does not exist yet.
func (s *Service) ReadSettings(ctx context.Context) (Settings, error) {
	key, err := s.key()
	if err != nil {
		return Settings{}, err
	}

	content, _, err := s.store.Read(ctx, SettingsDocument)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := codec.Parse(content, key, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// WriteSettings stamps LastUpdated and writes the settings document.
func (s *Service) WriteSettings(ctx context.Context, settings Settings) error {
	key, err := s.key()
	if err != nil {
		return err
	}
	settings.LastUpdated = strfmt.DateTime(time.Now().UTC())
	content, err := codec.Prepare(settings, key)
	if err != nil {
		return err
	}
	_, err = s.store.Write(ctx, SettingsDocument, content)
	return err
}

// AddExpense validates the expense, assigns a fresh ID and creation
// timestamp, and appends it to the ledger.
func (s *Service) AddExpense(ctx context.Context, expense Expense) (Expense, error) {
	expense.ID = uuid.NewString()
	expense.CreatedAt = strfmt.DateTime(time.Now().UTC())
	if err := expense.Validate(); err != nil {
		return Expense{}, err
	}

	expenses, err := s.ReadExpenses(ctx)
	if err != nil {
		return Expense{}, err
	}
	expenses = append(expenses, expense)
	if err := s.WriteExpenses(ctx, expenses); err != nil {
		return Expense{}, err
	}
	return expense, nil
}

// UpdateExpense replaces the ledger entry with the same ID.
func (s *Service) UpdateExpense(ctx context.Context, expense Expense) error {
	if err := expense.Validate(); err != nil {
		return err
	}

	expenses, err := s.ReadExpenses(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range expenses {
		if expenses[i].ID == expense.ID {
			expenses[i] = expense
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s: %w", expense.ID, ErrExpenseNotFound)
	}
	return s.WriteExpenses(ctx, expenses)
}

// DeleteExpense removes the ledger entry with the given ID.
func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	expenses, err := s.ReadExpenses(ctx)
	if err != nil {
		return err
	}

	kept := expenses[:0]
	for _, e := range expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(expenses) {
		return fmt.Errorf("%s: %w", id, ErrExpenseNotFound)
	}
	return s.WriteExpenses(ctx, kept)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// containsName reports whether names already holds name, ignoring case
// and surrounding whitespace. exclude exempts one existing entry, used
// when renaming an entry to a different casing of itself.
func containsName(names []string, name, exclude string) bool {
	normalized := normalizeName(name)
	excluded := normalizeName(exclude)
	for _, existing := range names {
		n := normalizeName(existing)
		if n == normalized && n != excluded {
			return true
		}
	}
	return false
}

func validateListEntry(kind string, names []string, name, exclude string) error {
	var problems []string
	if strings.TrimSpace(name) == "" {
		problems = append(problems, kind+" must not be empty")
	}
	if containsName(names, name, exclude) {
		problems = append(problems, fmt.Sprintf("a %s named %q already exists", kind, strings.TrimSpace(name)))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func indexOfName(names []string, name string) int {
	normalized := normalizeName(name)
	for i, existing := range names {
		if normalizeName(existing) == normalized {
			return i
		}
	}
	return -1
}

// AddCategory appends a category and persists the settings.
func (s *Service) AddCategory(ctx context.Context, category string) (string, error) {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return "", err
	}
	if err := validateListEntry("category", settings.Categories, category, ""); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(category)
	settings.Categories = append(settings.Categories, trimmed)
	if err := s.WriteSettings(ctx, settings); err != nil {
		return "", err
	}
	return trimmed, nil
}

// RenameCategory renames an existing category in place, preserving its
// position in the display order.
func (s *Service) RenameCategory(ctx context.Context, oldName, newName string) (string, error) {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return "", err
	}
	if err := validateListEntry("category", settings.Categories, newName, oldName); err != nil {
		return "", err
	}
	i := indexOfName(settings.Categories, oldName)
	if i < 0 {
		return "", fmt.Errorf("%s: %w", oldName, ErrCategoryNotFound)
	}
	trimmed := strings.TrimSpace(newName)
	settings.Categories[i] = trimmed
	if err := s.WriteSettings(ctx, settings); err != nil {
		return "", err
	}
	return trimmed, nil
}

// DeleteCategory removes a category and persists the settings.
func (s *Service) DeleteCategory(ctx context.Context, category string) error {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return err
	}
	i := indexOfName(settings.Categories, category)
	if i < 0 {
		return fmt.Errorf("%s: %w", category, ErrCategoryNotFound)
	}
	settings.Categories = append(settings.Categories[:i], settings.Categories[i+1:]...)
	return s.WriteSettings(ctx, settings)
}

// AddTag appends a tag and persists the settings.
func (s *Service) AddTag(ctx context.Context, tag string) (string, error) {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return "", err
	}
	if err := validateListEntry("tag", settings.Tags, tag, ""); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(tag)
	settings.Tags = append(settings.Tags, trimmed)
	if err := s.WriteSettings(ctx, settings); err != nil {
		return "", err
	}
	return trimmed, nil
}

// RenameTag renames an existing tag in place.
func (s *Service) RenameTag(ctx context.Context, oldName, newName string) (string, error) {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return "", err
	}
	if err := validateListEntry("tag", settings.Tags, newName, oldName); err != nil {
		return "", err
	}
	i := indexOfName(settings.Tags, oldName)
	if i < 0 {
		return "", fmt.Errorf("%s: %w", oldName, ErrTagNotFound)
	}
	trimmed := strings.TrimSpace(newName)
	settings.Tags[i] = trimmed
	if err := s.WriteSettings(ctx, settings); err != nil {
		return "", err
	}
	return trimmed, nil
}

// DeleteTag removes a tag and persists the settings.
func (s *Service) DeleteTag(ctx context.Context, tag string) error {
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return err
	}
	i := indexOfName(settings.Tags, tag)
	if i < 0 {
		return fmt.Errorf("%s: %w", tag, ErrTagNotFound)
	}
	settings.Tags = append(settings.Tags[:i], settings.Tags[i+1:]...)
	return s.WriteSettings(ctx, settings)
}
