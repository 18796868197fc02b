package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/brandkit/internal/domain"
)

const (
	// BrandIDLength is the number of characters in a Brand ID.
	BrandIDLength = 8

	maxBrandAttempts = 5
)

// NewBrandID returns a fresh 8-character uppercase hex token drawn from the
// random bits of a v4 UUID.
func NewBrandID() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:BrandIDLength/2]))
}

// identityResolver assigns Brand IDs. A customer keeps the ID first issued to
// their email; the customer store's unique index on brand_id decides
// collisions between fresh tokens.
type identityResolver struct {
	customers customerStore
	tx        txManager
	log       *slog.Logger
	newToken  func() string
}

func newIdentityResolver(log *slog.Logger, customers customerStore, tx txManager) *identityResolver {
	return &identityResolver{
		customers: customers,
		tx:        tx,
		log:       log,
		newToken:  NewBrandID,
	}
}

// Resolve returns the Brand ID for sub and upserts its customer record.
// It never fails: without a working store a fresh token is used.
func (r *identityResolver) Resolve(ctx context.Context, sub domain.Submission, submittedAt time.Time) string {
	token := r.newToken()
	if r.customers == nil {
		return token
	}

	for attempt := 1; attempt <= maxBrandAttempts; attempt++ {
		brandID, err := r.upsert(ctx, sub, token, submittedAt)
		if err == nil {
			return brandID
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			r.log.WarnContext(ctx, "customer store unavailable, using unsaved brand id",
				slog.String("brand_id", token),
				slog.String("error", err.Error()),
			)
			return token
		}
		r.log.InfoContext(ctx, "brand id collision, regenerating",
			slog.String("brand_id", token),
			slog.Int("attempt", attempt),
		)
		token = r.newToken()
	}

	r.log.ErrorContext(ctx, "brand id collisions exhausted, using unsaved brand id",
		slog.String("brand_id", token),
		slog.Int("attempts", maxBrandAttempts),
	)
	return token
}

func (r *identityResolver) upsert(ctx context.Context, sub domain.Submission, token string, submittedAt time.Time) (string, error) {
	var brandID string
	err := r.runInTx(ctx, func(ctx context.Context) error {
		existing, err := r.customers.FindByEmail(ctx, sub.Email)
		switch {
		case err == nil:
			token = existing.BrandID
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		saved, err := r.customers.Upsert(ctx, &domain.Customer{
			Email:        sub.Email,
			BusinessName: sub.BusinessName,
			BrandID:      token,
			LogoURL:      sub.LogoURL,
			Address:      sub.Address,
			CityStateZip: sub.CityStateZip,
			Phone:        sub.Phone,
			SubmittedAt:  submittedAt,
		})
		if err != nil {
			return err
		}
		brandID = saved.BrandID
		return nil
	})
	return brandID, err
}

func (r *identityResolver) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.tx == nil {
		return fn(ctx)
	}
	return r.tx.RunInTx(ctx, fn)
}

// markSent flags the customer as delivered. Failures are logged only.
func (r *identityResolver) markSent(ctx context.Context, brandID string) {
	if r.customers == nil {
		return
	}
	if err := r.customers.MarkEmailSent(ctx, brandID); err != nil {
		r.log.WarnContext(ctx, "mark email sent failed",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
	}
}
