package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contacts-api/internal/db"
	"contacts-api/internal/domain"
)

// ErrUnknownFilter se devuelve si un filtro no esta en la lista permitida.
var ErrUnknownFilter = errors.New("unknown contact filter")

// contactFilterColumns es la lista cerrada de campos buscables y su columna SQL.
var contactFilterColumns = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"phone":      "phone",
	"email":      "email",
	"birthday":   "birthday",
	"addition":   "addition",
}

// IsContactFilterField indica si name es un campo de busqueda permitido.
func IsContactFilterField(name string) bool {
	_, ok := contactFilterColumns[name]
	return ok
}

// ContactFilterFields devuelve los campos de busqueda permitidos, ordenados.
func ContactFilterFields() []string {
	fields := make([]string, 0, len(contactFilterColumns))
	for f := range contactFilterColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ContactRepository define el contrato de persistencia para contactos.
// Todas las operaciones reciben el userID dueño y nunca tocan filas de otro usuario.
type ContactRepository interface {
	Create(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Contact, error)
	Search(ctx context.Context, userID string, filters map[string]string, limit, offset int) ([]domain.Contact, error)
	GetByID(ctx context.Context, userID, id string) (domain.Contact, error)
	Update(ctx context.Context, userID, id string, fields domain.ContactFields) (domain.Contact, error)
	Delete(ctx context.Context, userID, id string) (domain.Contact, error)
	ListByBirthdays(ctx context.Context, userID string, monthDays []string) ([]domain.Contact, error)
}

// PgContactRepository implementa ContactRepository usando pgxpool.
type PgContactRepository struct {
	pool *pgxpool.Pool
}

func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

const contactColumns = `id, user_id, first_name, last_name, phone, email, birthday, addition, created_at, updated_at`

func (r *PgContactRepository) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	const query = `
		INSERT INTO contacts (id, user_id, first_name, last_name, phone, email, birthday, addition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + contactColumns
	return scanContact(db.Conn(ctx, r.pool).QueryRow(ctx, query,
		contact.ID,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		contact.Email,
		contact.Birthday,
		contact.Addition,
		contact.CreatedAt,
		contact.UpdatedAt,
	))
}

func (r *PgContactRepository) List(ctx context.Context, userID string, limit, offset int) ([]domain.Contact, error) {
	query, args, err := buildSearchQuery(userID, nil, limit, offset)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *PgContactRepository) Search(ctx context.Context, userID string, filters map[string]string, limit, offset int) ([]domain.Contact, error) {
	query, args, err := buildSearchQuery(userID, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *PgContactRepository) GetByID(ctx context.Context, userID, id string) (domain.Contact, error) {
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND user_id = $2`
	return scanContact(db.Conn(ctx, r.pool).QueryRow(ctx, query, id, userID))
}

func (r *PgContactRepository) Update(ctx context.Context, userID, id string, fields domain.ContactFields) (domain.Contact, error) {
	const query = `
		UPDATE contacts
		SET first_name = $1, last_name = $2, phone = $3, email = $4, birthday = $5, addition = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING ` + contactColumns
	return scanContact(db.Conn(ctx, r.pool).QueryRow(ctx, query,
		fields.FirstName,
		fields.LastName,
		fields.Phone,
		fields.Email,
		fields.Birthday,
		fields.Addition,
		id,
		userID,
	))
}

func (r *PgContactRepository) Delete(ctx context.Context, userID, id string) (domain.Contact, error) {
	const query = `DELETE FROM contacts WHERE id = $1 AND user_id = $2 RETURNING ` + contactColumns
	return scanContact(db.Conn(ctx, r.pool).QueryRow(ctx, query, id, userID))
}

// ListByBirthdays compara solo mes y dia ("MM-DD") del cumpleaños; el año se ignora.
func (r *PgContactRepository) ListByBirthdays(ctx context.Context, userID string, monthDays []string) ([]domain.Contact, error) {
	if len(monthDays) == 0 {
		return []domain.Contact{}, nil
	}
	const query = `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1 AND to_char(to_date(birthday, 'YYYY-MM-DD'), 'MM-DD') = ANY($2)
		ORDER BY created_at, id
	`
	return r.query(ctx, query, userID, monthDays)
}

func (r *PgContactRepository) query(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

// buildSearchQuery arma la consulta paginada con un ILIKE por cada filtro no vacio.
// Las claves se validan contra contactFilterColumns; los valores viajan siempre como parametros.
func buildSearchQuery(userID string, filters map[string]string, limit, offset int) (string, []any, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if !IsContactFilterField(k) {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownFilter, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`)
	args := []any{userID}
	for _, k := range keys {
		value := strings.TrimSpace(filters[k])
		if value == "" {
			continue
		}
		args = append(args, "%"+escapeLike(value)+"%")
		fmt.Fprintf(&b, ` AND %s ILIKE $%d`, contactFilterColumns[k], len(args))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, ` ORDER BY created_at, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return b.String(), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanContact(row pgx.Row) (domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.Email,
		&c.Birthday,
		&c.Addition,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Contact{}, err
	}
	return c, nil
}
