package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/brandkit/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passthroughTx() *txManagerMock {
	return &txManagerMock{
		RunInTxFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

func tokens(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

var testSub = domain.Submission{
	BusinessName: "Acme",
	Email:        "a@acme.com",
	LogoURL:      "http://x/logo.png",
}

func TestNewBrandID_Format(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 200 {
		id := NewBrandID()
		assert.Regexp(t, `^[0-9A-F]{8}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 190, "tokens should not repeat in a small sample")
}

func TestResolve_NoStoreUsesFreshToken(t *testing.T) {
	t.Parallel()

	r := newIdentityResolver(discardLogger(), nil, nil)
	r.newToken = tokens("AAAA0001")

	assert.Equal(t, "AAAA0001", r.Resolve(context.Background(), testSub, time.Now()))
}

func TestResolve_NewCustomer(t *testing.T) {
	t.Parallel()

	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return nil, domain.ErrNotFound
		},
		UpsertFunc: func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
			return c, nil
		},
	}
	tx := passthroughTx()
	r := newIdentityResolver(discardLogger(), store, tx)
	r.newToken = tokens("AAAA0001")

	got := r.Resolve(context.Background(), testSub, submitted)

	assert.Equal(t, "AAAA0001", got)
	assert.Len(t, tx.RunInTxCalls(), 1)
	require.Len(t, store.UpsertCalls(), 1)
	saved := store.UpsertCalls()[0].C
	assert.Equal(t, "a@acme.com", saved.Email)
	assert.Equal(t, "Acme", saved.BusinessName)
	assert.Equal(t, "http://x/logo.png", saved.LogoURL)
	assert.Equal(t, submitted, saved.SubmittedAt)
}

func TestResolve_ExistingCustomerKeepsBrandID(t *testing.T) {
	t.Parallel()

	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return &domain.Customer{Email: email, BrandID: "CAFE0042"}, nil
		},
		UpsertFunc: func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
			return c, nil
		},
	}
	r := newIdentityResolver(discardLogger(), store, passthroughTx())
	r.newToken = tokens("AAAA0001")

	got := r.Resolve(context.Background(), testSub, time.Now())

	assert.Equal(t, "CAFE0042", got)
	require.Len(t, store.UpsertCalls(), 1)
	assert.Equal(t, "CAFE0042", store.UpsertCalls()[0].C.BrandID)
}

func TestResolve_CollisionRegenerates(t *testing.T) {
	t.Parallel()

	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return nil, domain.ErrNotFound
		},
		UpsertFunc: func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
			if c.BrandID == "TAKEN001" {
				return nil, domain.ErrAlreadyExists
			}
			return c, nil
		},
	}
	r := newIdentityResolver(discardLogger(), store, passthroughTx())
	r.newToken = tokens("TAKEN001", "FREE0002")

	assert.Equal(t, "FREE0002", r.Resolve(context.Background(), testSub, time.Now()))
	assert.Len(t, store.UpsertCalls(), 2)
}

func TestResolve_CollisionsExhausted(t *testing.T) {
	t.Parallel()

	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return nil, domain.ErrNotFound
		},
		UpsertFunc: func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
			return nil, domain.ErrAlreadyExists
		},
	}
	r := newIdentityResolver(discardLogger(), store, passthroughTx())

	got := r.Resolve(context.Background(), testSub, time.Now())

	assert.Regexp(t, `^[0-9A-F]{8}$`, got)
	assert.Len(t, store.UpsertCalls(), maxBrandAttempts)
}

func TestResolve_StoreDownDegrades(t *testing.T) {
	t.Parallel()

	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return nil, errors.New("connection refused")
		},
	}
	r := newIdentityResolver(discardLogger(), store, passthroughTx())
	r.newToken = tokens("AAAA0001")

	assert.Equal(t, "AAAA0001", r.Resolve(context.Background(), testSub, time.Now()))
	assert.Empty(t, store.UpsertCalls())
}

func TestResolve_WithoutTxManager(t *testing.T) {
	t.Parallel()

	store := &customerStoreMock{
		FindByEmailFunc: func(ctx context.Context, email string) (*domain.Customer, error) {
			return nil, domain.ErrNotFound
		},
		UpsertFunc: func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
			return c, nil
		},
	}
	r := newIdentityResolver(discardLogger(), store, nil)
	r.newToken = tokens("AAAA0001")

	assert.Equal(t, "AAAA0001", r.Resolve(context.Background(), testSub, time.Now()))
}
