package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/brandkit/internal/domain"
)

// ErrNoCustomerStore is returned by ProcessPending when the service runs
// without a customer store.
var ErrNoCustomerStore = errors.New("pipeline: customer store not configured")

// PendingSummary counts the outcomes of one ProcessPending call.
type PendingSummary struct {
	Found  int `json:"found"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	// Skipped customers lack the data needed to rebuild their document.
	Skipped int `json:"skipped"`
}

// ProcessPending re-sends the preview document to up to limit customers
// whose email was never confirmed as sent. A failure for one customer is
// logged and counted and the loop moves on. limit <= 0 uses
// DefaultPendingBatch.
func (s *Service) ProcessPending(ctx context.Context, limit int) (PendingSummary, error) {
	var sum PendingSummary
	if s.customers == nil {
		return sum, ErrNoCustomerStore
	}
	if limit <= 0 {
		limit = DefaultPendingBatch
	}

	pending, err := s.customers.ListPending(ctx, limit)
	if err != nil {
		return sum, fmt.Errorf("pipeline: list pending: %w", err)
	}
	sum.Found = len(pending)
	s.log.InfoContext(ctx, "processing pending customers", slog.Int("count", len(pending)))

	pace := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.PendingInterval > 0 {
		pace = rate.NewLimiter(rate.Every(s.cfg.PendingInterval), 1)
	}

	for _, c := range pending {
		if err := pace.Wait(ctx); err != nil {
			return sum, fmt.Errorf("pipeline: pending run interrupted: %w", err)
		}

		_, err := s.Redeliver(ctx, c)
		switch {
		case err == nil:
			sum.Sent++
		case errors.Is(err, domain.ErrValidation):
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	s.log.InfoContext(ctx, "pending customers processed",
		slog.Int("found", sum.Found),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// Redeliver rebuilds the preview document for a stored customer and sends it
// again. The ledger is not involved; on success the customer is marked as
// sent. Temp files are removed before Redeliver returns.
func (s *Service) Redeliver(ctx context.Context, c domain.Customer) (res Result, err error) {
	id := "rerun-" + s.now().UTC().Format("20060102T150405Z")

	ctx, span := s.tracer.Start(ctx, "pipeline.Redeliver", trace.WithAttributes(
		attribute.String("brand.id", c.BrandID),
	))
	defer span.End()

	r := &run{
		ev:        domain.Event{ID: id},
		variant:   domain.VariantPreview,
		log:       s.log.With(slog.String("brand_id", c.BrandID), slog.Bool("rerun", true)),
		res:       Result{EventID: id, BrandID: c.BrandID, State: StateExtracting},
		untracked: true,
	}
	defer func() {
		err = s.settle(ctx, r, span, recover(), err)
		res = r.res
	}()

	var sub domain.Submission
	if err := s.stage(ctx, r, func(context.Context) error {
		var err error
		sub, err = submissionFor(c)
		return err
	}); err != nil {
		return r.res, err
	}

	path, err := s.render(ctx, r, sub)
	if err != nil {
		return r.res, err
	}
	s.finish(ctx, r, sub, path)
	return r.res, nil
}

// submissionFor rebuilds a Submission from a stored customer. Tax and
// currency are not stored and fall back to the form defaults.
func submissionFor(c domain.Customer) (domain.Submission, error) {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return domain.Submission{}, domain.NewValidationError("email", "required")
	case strings.TrimSpace(c.LogoURL) == "":
		return domain.Submission{}, domain.NewValidationError("logo", "required")
	case c.BrandID == "":
		return domain.Submission{}, domain.NewValidationError("brandId", "required")
	}

	name := c.BusinessName
	if strings.TrimSpace(name) == "" {
		name = domain.DefaultBusinessName
	}
	return domain.Submission{
		BusinessName: name,
		Address:      c.Address,
		CityStateZip: c.CityStateZip,
		Phone:        c.Phone,
		Email:        c.Email,
		TaxPercent:   domain.DefaultTaxPercent,
		Currency:     domain.DefaultCurrency,
		LogoURL:      c.LogoURL,
		BrandID:      c.BrandID,
	}, nil
}
