package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contacts-api/internal/db"
	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

const (
	DefaultContactLimit = 10
	MaxContactLimit     = 500
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 366

	maxNameLength     = 50
	maxPhoneLength    = 20
	maxAdditionLength = 250
)

var monthDayPattern = regexp.MustCompile(`^\d{2}-\d{2}$`)

// ContactInput es el payload de alta y reemplazo de un contacto.
type ContactInput struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Birthday  string
	Addition  string
}

// ContactService aplica validacion y ownership sobre el repositorio de contactos.
type ContactService struct {
	logger   *zap.Logger
	tx       db.Transactor
	contacts repository.ContactRepository
	now      func() time.Time
}

func NewContactService(logger *zap.Logger, tx db.Transactor, contacts repository.ContactRepository) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	return &ContactService{
		logger:   logger,
		tx:       tx,
		contacts: contacts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ContactService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Contact, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	return s.contacts.List(ctx, userID, limit, offset)
}

// Search filtra por substring case-insensitive en los campos permitidos (AND).
// Valores vacios se ignoran; sin filtros equivale a List.
func (s *ContactService) Search(ctx context.Context, userID string, filters map[string]string, limit, offset int) ([]domain.Contact, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	clean := make(map[string]string, len(filters))
	for key, value := range filters {
		if !repository.IsContactFilterField(key) {
			return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidFilter, key,
				strings.Join(repository.ContactFilterFields(), ", "))
		}
		if value = strings.TrimSpace(value); value != "" {
			clean[key] = value
		}
	}
	contacts, err := s.contacts.Search(ctx, userID, clean, limit, offset)
	if errors.Is(err, repository.ErrUnknownFilter) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return contacts, err
}

func (s *ContactService) Get(ctx context.Context, userID, id string) (domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Contact{}, ErrContactNotFound
	}
	contact, err := s.contacts.GetByID(ctx, userID, id)
	return contact, notFound(err)
}

func (s *ContactService) Create(ctx context.Context, userID string, input ContactInput) (domain.Contact, error) {
	fields, err := validateContact(input)
	if err != nil {
		return domain.Contact{}, err
	}
	now := s.now()
	contact := domain.Contact{
		ID:        uuid.NewString(),
		UserID:    userID,
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Phone:     fields.Phone,
		Email:     fields.Email,
		Birthday:  fields.Birthday,
		Addition:  fields.Addition,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var created domain.Contact
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.contacts.Create(ctx, contact)
		return err
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return created, nil
}

// Update reemplaza todos los campos mutables del contacto.
func (s *ContactService) Update(ctx context.Context, userID, id string, input ContactInput) (domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Contact{}, ErrContactNotFound
	}
	fields, err := validateContact(input)
	if err != nil {
		return domain.Contact{}, err
	}
	var updated domain.Contact
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.contacts.Update(ctx, userID, id, fields)
		return err
	})
	return updated, notFound(err)
}

// Delete devuelve el contacto eliminado.
func (s *ContactService) Delete(ctx context.Context, userID, id string) (domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Contact{}, ErrContactNotFound
	}
	var deleted domain.Contact
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.contacts.Delete(ctx, userID, id)
		return err
	})
	if err == nil {
		s.logger.Info("contact deleted", zap.String("user_id", userID), zap.String("contact_id", id))
	}
	return deleted, notFound(err)
}

// BirthdaysOn devuelve los contactos cuyo cumpleaños (mes-dia) coincide
// literalmente con alguna de las claves "MM-DD".
func (s *ContactService) BirthdaysOn(ctx context.Context, userID string, monthDays []string) ([]domain.Contact, error) {
	if len(monthDays) == 0 {
		return []domain.Contact{}, nil
	}
	keys := make([]string, 0, len(monthDays))
	seen := make(map[string]struct{}, len(monthDays))
	for _, md := range monthDays {
		md = strings.TrimSpace(md)
		if !isValidMonthDay(md) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBirthdays, md)
		}
		if _, ok := seen[md]; ok {
			continue
		}
		seen[md] = struct{}{}
		keys = append(keys, md)
	}
	return s.contacts.ListByBirthdays(ctx, userID, keys)
}

// Upcoming devuelve los cumpleaños de los proximos days dias empezando hoy.
func (s *ContactService) Upcoming(ctx context.Context, userID string, days int) ([]domain.Contact, error) {
	if days < 1 || days > MaxUpcomingDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidBirthdays, MaxUpcomingDays)
	}
	return s.contacts.ListByBirthdays(ctx, userID, UpcomingMonthDays(s.now(), days))
}

// UpcomingMonthDays construye las claves "MM-DD" de [from, from+days).
// En años no bisiestos, el 28 de febrero tambien cubre a los nacidos el 29.
func UpcomingMonthDays(from time.Time, days int) []string {
	keys := make([]string, 0, days+1)
	seen := make(map[string]struct{}, days+1)
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		add(day.Format("01-02"))
		if day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year()) {
			add("02-29")
		}
	}
	return keys
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func isValidMonthDay(md string) bool {
	if !monthDayPattern.MatchString(md) {
		return false
	}
	// 2000 es bisiesto, asi 02-29 es valido.
	_, err := time.Parse(domain.BirthdayLayout, "2000-"+md)
	return err == nil
}

func validatePage(limit, offset int) error {
	if limit < 1 || limit > MaxContactLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPagination, MaxContactLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrInvalidPagination)
	}
	return nil
}

func validateContact(input ContactInput) (domain.ContactFields, error) {
	fields := domain.ContactFields{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     strings.TrimSpace(input.Phone),
		Email:     strings.TrimSpace(input.Email),
		Birthday:  strings.TrimSpace(input.Birthday),
		Addition:  strings.TrimSpace(input.Addition),
	}
	if err := requireLength("first_name", fields.FirstName, maxNameLength); err != nil {
		return domain.ContactFields{}, err
	}
	if err := requireLength("last_name", fields.LastName, maxNameLength); err != nil {
		return domain.ContactFields{}, err
	}
	if err := requireLength("phone", fields.Phone, maxPhoneLength); err != nil {
		return domain.ContactFields{}, err
	}
	if addr, err := mail.ParseAddress(fields.Email); err != nil || addr.Address != fields.Email {
		return domain.ContactFields{}, fmt.Errorf("%w: email is not valid", ErrInvalidContact)
	}
	if _, err := time.Parse(domain.BirthdayLayout, fields.Birthday); err != nil {
		return domain.ContactFields{}, fmt.Errorf("%w: birthday must be YYYY-MM-DD", ErrInvalidContact)
	}
	if utf8.RuneCountInString(fields.Addition) > maxAdditionLength {
		return domain.ContactFields{}, fmt.Errorf("%w: addition exceeds %d characters", ErrInvalidContact, maxAdditionLength)
	}
	return fields, nil
}

func requireLength(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidContact, field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidContact, field, max)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrContactNotFound
	}
	return err
}
