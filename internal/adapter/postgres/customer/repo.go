// Package customer implements the customer-record repository using PostgreSQL.
package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/brandkit/internal/adapter/postgres"
	"github.com/heartmarshall/brandkit/internal/domain"
)

const table = "customers"

var columns = []string{
	"id", "email", "business_name", "brand_id", "logo_url", "address",
	"city_state_zip", "phone", "submitted_at", "email_sent", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repo provides customer persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new customer repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// FindByEmail returns the customer registered under email (case-insensitive).
// Returns domain.ErrNotFound if there is none.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = normalizeEmail(email)

	query, args, err := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, postgres.MapError(err, "customer", email)
	}
	return c, nil
}

// ListPending returns up to limit customers whose email was never marked as
// sent, oldest submission first.
func (r *Repo) ListPending(ctx context.Context, limit int) ([]domain.Customer, error) {
	query, args, err := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"email_sent": false}).
		OrderBy("submitted_at ASC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list pending query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending customer: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending customers: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Upsert inserts c or, when a customer with the same email exists, refreshes
// its profile. The stored brand_id of an existing customer is never changed.
// A brand_id collision with another customer returns domain.ErrAlreadyExists.
func (r *Repo) Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	email := normalizeEmail(c.Email)

	query, args, err := psql.Insert(table).
		Columns("id", "email", "business_name", "brand_id", "logo_url", "address",
			"city_state_zip", "phone", "submitted_at", "email_sent").
		Values(c.ID, email, c.BusinessName, c.BrandID, c.LogoURL, c.Address,
			c.CityStateZip, c.Phone, c.SubmittedAt, false).
		Suffix(`ON CONFLICT (email) DO UPDATE SET
    business_name  = EXCLUDED.business_name,
    logo_url       = EXCLUDED.logo_url,
    address        = EXCLUDED.address,
    city_state_zip = EXCLUDED.city_state_zip,
    phone          = EXCLUDED.phone,
    submitted_at   = EXCLUDED.submitted_at,
    email_sent     = FALSE,
    updated_at     = now()
RETURNING ` + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert query: %w", err)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...)
	out, err := scanCustomer(row)
	if err != nil {
		return nil, postgres.MapError(err, "customer", c.BrandID)
	}
	return out, nil
}

// MarkEmailSent flags the customer owning brandID as delivered.
// Returns domain.ErrNotFound if no customer has that brand id.
func (r *Repo) MarkEmailSent(ctx context.Context, brandID string) error {
	query, args, err := psql.Update(table).
		Set("email_sent", true).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"brand_id": brandID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark query: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "customer", brandID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "customer", brandID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.Email, &c.BusinessName, &c.BrandID, &c.LogoURL, &c.Address,
		&c.CityStateZip, &c.Phone, &c.SubmittedAt, &c.EmailSent, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SubmittedAt = c.SubmittedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
