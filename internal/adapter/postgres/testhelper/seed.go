package testhelper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/brandkit/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// UniqueBrandID returns a random token in the stored brand id format.
func UniqueBrandID() string {
	return strings.ToUpper(uniqueSuffix())
}

// SeedCustomer inserts a customer with unique email and brand id.
func SeedCustomer(t *testing.T, pool *pgxpool.Pool) domain.Customer {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := domain.Customer{
		ID:           uuid.New(),
		Email:        "customer-" + suffix + "@example.com",
		BusinessName: "Business " + suffix,
		BrandID:      strings.ToUpper(suffix),
		LogoURL:      "https://cdn.example.com/" + suffix + ".png",
		Address:      "1 Main St",
		CityStateZip: "Springfield, IL 62701",
		Phone:        "555-0100",
		SubmittedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO customers (id, email, business_name, brand_id, logo_url, address,
		    city_state_zip, phone, submitted_at, email_sent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.Email, c.BusinessName, c.BrandID, c.LogoURL, c.Address,
		c.CityStateZip, c.Phone, c.SubmittedAt, c.EmailSent, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: seed customer: %v", err)
	}
	return c
}
