// Package pipeline turns a form-submission webhook into a branded,
// protected spreadsheet delivered by email, at most once per event.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/brandkit/internal/document"
	"github.com/heartmarshall/brandkit/internal/domain"
	"github.com/heartmarshall/brandkit/internal/ledger"
	"github.com/heartmarshall/brandkit/internal/notify"
)

const (
	DefaultStaleAfter   = 5 * time.Minute
	DefaultTolerance    = 50
	DefaultPendingBatch = 100

	previewSubject  = "Your Custom Invoice Template & Brand ID"
	licensedSubject = "Your Licensed Invoice Template & Brand ID"
)

//go:generate moq -out asset_fetcher_mock_test.go -pkg pipeline . assetFetcher
//go:generate moq -out delivery_mock_test.go -pkg pipeline . delivery
//go:generate moq -out customer_store_mock_test.go -pkg pipeline . customerStore
//go:generate moq -out archiver_mock_test.go -pkg pipeline . archiver
//go:generate moq -out tx_manager_mock_test.go -pkg pipeline . txManager

type assetFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type documentBuilder interface {
	Customize(templatePath string, sub domain.Submission, logoPNG []byte, watermarkPath string) (*document.Result, error)
	Materialize(res *document.Result) (string, error)
}

type delivery interface {
	Send(ctx context.Context, msg notify.Message) error
}

type customerStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	MarkEmailSent(ctx context.Context, brandID string) error
	ListPending(ctx context.Context, limit int) ([]domain.Customer, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type archiver interface {
	Archive(ctx context.Context, brandID, eventID, filePath string) (string, error)
}

// Config holds the per-deployment pipeline settings.
type Config struct {
	TemplatePath  string
	WatermarkPath string
	StaleAfter    time.Duration
	// Tolerance is the background-removal channel distance. Zero removes
	// only exact matches of the corner colour; negative uses DefaultTolerance.
	Tolerance int
	// MaxLogoPixels caps width*height of an uploaded logo. Zero uses
	// imaging.DefaultMaxPixels.
	MaxLogoPixels int
	// PendingInterval paces ProcessPending between customers. Zero disables
	// pacing.
	PendingInterval time.Duration
}

// Deps are the collaborators of a Service. Customers, Tx and Archive are
// optional; leave them nil to run without a customer store or archive.
type Deps struct {
	Ledger    ledger.Ledger
	Assets    assetFetcher
	Documents documentBuilder
	Delivery  delivery
	Customers customerStore
	Tx        txManager
	Archive   archiver
}

// Service runs the webhook pipeline.
type Service struct {
	ledger    ledger.Ledger
	assets    assetFetcher
	documents documentBuilder
	delivery  delivery
	archive   archiver
	customers customerStore
	identity  *identityResolver

	cfg    Config
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a pipeline Service.
func NewService(log *slog.Logger, cfg Config, deps Deps) *Service {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = DefaultTolerance
	}
	log = log.With("service", "pipeline")
	return &Service{
		ledger:    deps.Ledger,
		assets:    deps.Assets,
		documents: deps.Documents,
		delivery:  deps.Delivery,
		archive:   deps.Archive,
		customers: deps.Customers,
		identity:  newIdentityResolver(log, deps.Customers, deps.Tx),
		cfg:       cfg,
		log:       log,
		tracer:    otel.Tracer("github.com/heartmarshall/brandkit/internal/service/pipeline"),
		now:       time.Now,
	}
}

func (s *Service) watermarkFor(v domain.Variant) string {
	if v == domain.VariantLicensed {
		return ""
	}
	return s.cfg.WatermarkPath
}

func subjectFor(v domain.Variant) string {
	if v == domain.VariantLicensed {
		return licensedSubject
	}
	return previewSubject
}
