package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/brandkit/internal/document"
	"github.com/heartmarshall/brandkit/internal/domain"
	"github.com/heartmarshall/brandkit/internal/imaging"
	"github.com/heartmarshall/brandkit/internal/notify"
)

// run carries the mutable state of one Process or Redeliver call.
type run struct {
	ev      domain.Event
	variant domain.Variant
	log     *slog.Logger
	res     Result
	doc     *document.Result
	// recorded is set once the event was recorded as processed.
	recorded bool
	// untracked runs have no ledger entry to update.
	untracked bool
}

// Process runs the pipeline for one delivery of ev.
//
// A duplicate, stale or in-flight delivery returns a Result in a skip state
// and a nil error. Any failure returns a *StageError; the event then stays
// recorded as unprocessed so a redelivery can try again. Temp files created
// along the way are removed before Process returns, including on panic.
func (s *Service) Process(ctx context.Context, ev domain.Event, variant domain.Variant) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("pipeline.variant", string(variant)),
	))
	defer span.End()

	r := &run{
		ev:        ev,
		variant:   variant,
		log:       s.log.With(slog.String("event_id", ev.ID), slog.String("variant", string(variant))),
		res:       Result{EventID: ev.ID, State: StateReceived},
		untracked: ev.ID == "",
	}
	defer func() {
		err = s.settle(ctx, r, span, recover(), err)
		res = r.res
	}()

	if ev.ID == "" {
		return r.res, s.fail(ctx, r, domain.NewValidationError("eventId", "required"))
	}

	err = s.process(ctx, r)
	return r.res, err
}

// settle runs when Process or Redeliver returns. It removes temp files and
// turns a panic into a *StageError, then records the outcome on span.
func (s *Service) settle(ctx context.Context, r *run, span trace.Span, rec any, err error) error {
	s.cleanup(r)
	if rec != nil {
		r.log.ErrorContext(ctx, "pipeline panic",
			slog.Any("panic", rec),
			slog.String("stack", string(debug.Stack())),
		)
		if !r.recorded && !r.untracked {
			if rerr := s.ledger.Record(context.WithoutCancel(ctx), r.ev.ID, false); rerr != nil {
				r.log.ErrorContext(ctx, "ledger record after panic failed", slog.String("error", rerr.Error()))
			}
		}
		err = s.fail(ctx, r, fmt.Errorf("%w: panic: %v", domain.ErrUnhandled, rec))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("pipeline.state", string(r.res.State)))
	return err
}

func (s *Service) process(ctx context.Context, r *run) error {
	id := r.ev.ID

	entry, found, err := s.ledger.Lookup(ctx, id)
	if err != nil {
		return s.fail(ctx, r, fmt.Errorf("%w: ledger lookup: %w", domain.ErrUnhandled, err))
	}
	if found && entry.Processed {
		r.log.InfoContext(ctx, "duplicate event skipped")
		r.res.State = StateDuplicate
		return nil
	}

	if stale, age := s.isStale(r.ev); stale {
		if err := s.ledger.Record(ctx, id, false); err != nil {
			return s.fail(ctx, r, fmt.Errorf("%w: ledger record: %w", domain.ErrUnhandled, err))
		}
		r.log.InfoContext(ctx, "stale event skipped", slog.Duration("age", age))
		r.res.State = StateStale
		return nil
	}

	release, ok, err := s.ledger.Claim(ctx, id)
	if err != nil {
		return s.fail(ctx, r, fmt.Errorf("%w: ledger claim: %w", domain.ErrUnhandled, err))
	}
	if !ok {
		r.log.InfoContext(ctx, "event already in flight")
		r.res.State = StateInFlight
		r.res.Retryable = true
		return nil
	}
	defer release()

	// Another run may have finished between Lookup and Claim.
	entry, found, err = s.ledger.Lookup(ctx, id)
	if err != nil {
		return s.fail(ctx, r, fmt.Errorf("%w: ledger lookup: %w", domain.ErrUnhandled, err))
	}
	if found && entry.Processed {
		r.log.InfoContext(ctx, "duplicate event skipped after claim")
		r.res.State = StateDuplicate
		return nil
	}
	if err := s.ledger.Record(ctx, id, false); err != nil {
		return s.fail(ctx, r, fmt.Errorf("%w: ledger record: %w", domain.ErrUnhandled, err))
	}

	return s.generate(ctx, r)
}

func (s *Service) generate(ctx context.Context, r *run) error {
	var sub domain.Submission

	r.res.State = StateExtracting
	err := s.stage(ctx, r, func(ctx context.Context) error {
		var err error
		if sub, err = Extract(r.ev); err != nil {
			return err
		}
		submittedAt, perr := r.ev.ParseCreatedAt()
		if perr != nil {
			submittedAt = s.now().UTC()
		}
		sub.BrandID = s.identity.Resolve(ctx, sub, submittedAt)
		r.res.BrandID = sub.BrandID
		return nil
	})
	if err != nil {
		return err
	}
	r.log = r.log.With(slog.String("brand_id", sub.BrandID))

	path, err := s.render(ctx, r, sub)
	if err != nil {
		return err
	}

	r.res.State = StateRecording
	if err := s.ledger.Record(ctx, r.ev.ID, true); err != nil {
		// The email is out; failing here would only invite a second copy.
		r.log.ErrorContext(ctx, "ledger record after delivery failed", slog.String("error", err.Error()))
	}
	r.recorded = true
	s.finish(ctx, r, sub, path)
	return nil
}

// render runs the stages from LOGO_FETCH through DELIVERING and returns the
// path of the delivered document.
func (s *Service) render(ctx context.Context, r *run, sub domain.Submission) (string, error) {
	var (
		logo []byte
		path string
	)

	r.res.State = StateLogoFetch
	if err := s.stage(ctx, r, func(ctx context.Context) error {
		var err error
		logo, err = s.assets.Fetch(ctx, sub.LogoURL)
		return err
	}); err != nil {
		return "", err
	}

	r.res.State = StateTransforming
	if err := s.stage(ctx, r, func(ctx context.Context) error {
		img, format, err := imaging.Decode(logo, s.cfg.MaxLogoPixels)
		if err != nil {
			return fmt.Errorf("%w: decode logo: %w", domain.ErrAssetFetch, err)
		}
		r.log.DebugContext(ctx, "logo decoded", slog.String("format", format))
		if logo, err = imaging.EncodePNG(imaging.RemoveBackground(img, s.cfg.Tolerance)); err != nil {
			return fmt.Errorf("%w: encode logo: %w", domain.ErrUnhandled, err)
		}
		return nil
	}); err != nil {
		return "", err
	}

	r.res.State = StateCustomizing
	if err := s.stage(ctx, r, func(ctx context.Context) error {
		var err error
		r.doc, err = s.documents.Customize(s.cfg.TemplatePath, sub, logo, s.watermarkFor(r.variant))
		if err != nil {
			return err
		}
		path, err = s.documents.Materialize(r.doc)
		return err
	}); err != nil {
		return "", err
	}

	r.res.State = StateDelivering
	if err := s.stage(ctx, r, func(ctx context.Context) error {
		return s.delivery.Send(ctx, notify.Message{
			Recipient:       sub.Email,
			Subject:         subjectFor(r.variant),
			AttachmentPaths: []string{path},
			BusinessName:    sub.BusinessName,
			BrandID:         sub.BrandID,
			TaxPercent:      sub.TaxPercent,
			Currency:        sub.Currency,
			Variant:         r.variant,
		})
	}); err != nil {
		return "", err
	}
	return path, nil
}

// finish runs the best-effort steps after delivery. Nothing here can fail
// the run.
func (s *Service) finish(ctx context.Context, r *run, sub domain.Submission, path string) {
	s.identity.markSent(ctx, sub.BrandID)
	s.archiveDocument(ctx, r, sub.BrandID, path)

	r.res.State = StateDone
	r.log.InfoContext(ctx, "document delivered", slog.String("recipient", sub.Email))
}

// stage runs fn inside a child span named after the current state and turns
// its error into a *StageError.
func (s *Service) stage(ctx context.Context, r *run, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "pipeline."+string(r.res.State))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, r, err)
	}
	return nil
}

// fail moves r to the failed state and wraps err with the stage it occurred in.
func (s *Service) fail(ctx context.Context, r *run, err error) error {
	stage := r.res.State
	r.res.State = StateFailed
	r.res.Retryable = retryable(err)

	var serr *StageError
	if errors.As(err, &serr) {
		return serr
	}

	level := slog.LevelError
	if !r.res.Retryable {
		level = slog.LevelWarn
	}
	r.log.Log(ctx, level, "pipeline failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
	return &StageError{Stage: stage, Err: err}
}

func (s *Service) isStale(ev domain.Event) (bool, time.Duration) {
	created, err := ev.ParseCreatedAt()
	if err != nil {
		s.log.Warn("unparseable event timestamp, treating as fresh",
			slog.String("event_id", ev.ID),
			slog.String("created_at", ev.CreatedAt),
		)
		return false, 0
	}
	age := s.now().Sub(created)
	return age > s.cfg.StaleAfter, age
}

func (s *Service) archiveDocument(ctx context.Context, r *run, brandID, path string) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.Archive(ctx, brandID, r.ev.ID, path)
	if err != nil {
		r.log.WarnContext(ctx, "archive failed", slog.String("error", err.Error()))
		return
	}
	r.log.DebugContext(ctx, "document archived", slog.String("key", key))
}

// cleanup releases the workbook and deletes every temp file of the run.
// Failures are logged and never returned.
func (s *Service) cleanup(r *run) {
	if r.doc == nil {
		return
	}
	if err := r.doc.Close(); err != nil {
		r.log.Warn("close workbook failed", slog.String("error", err.Error()))
	}
	for _, p := range r.doc.TempPaths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("temp file not removed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}
