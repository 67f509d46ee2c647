package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/cron"
	"github.com/angelmondragon/basketcase/internal/prices"
	"github.com/angelmondragon/basketcase/pkg/db"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/kroger"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/metrics"
)

// DefaultBatchSize matches the catalog's per-request product limit.
const DefaultBatchSize = kroger.MaxProductsPerRequest

// PriceSource fetches current prices for a batch of products at one store.
type PriceSource interface {
	GetPrices(ctx context.Context, productIDs []string, storeID string) ([]kroger.PriceRecord, error)
}

// PairLister lists the (product, store) pairs referenced by baskets.
type PairLister interface {
	TrackedPairs(ctx context.Context) ([]baskets.TrackedPair, error)
}

// Summary describes one refresh run.
type Summary struct {
	Stores       int       `json:"stores"`
	StoresFailed int       `json:"stores_failed"`
	Products     int       `json:"products"`
	Appended     int       `json:"appended"`
	Skipped      int       `json:"skipped"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Deps groups refresh collaborators. Lock may be nil when only in-process exclusion is needed.
type Deps struct {
	Tx        db.TxRunner
	Pairs     PairLister
	Source    PriceSource
	Prices    prices.Repository
	Audit     audit.Recorder
	Lock      cron.Lock
	Logger    *logger.Logger
	Metrics   *metrics.RefreshMetrics
	BatchSize int
	Now       func() time.Time
}

// Service appends the latest observed price of every tracked product. At most one run is in
// flight per process, and Lock extends that across processes.
type Service struct {
	mu sync.Mutex

	tx        db.TxRunner
	pairs     PairLister
	source    PriceSource
	prices    prices.Repository
	audit     audit.Recorder
	lock      cron.Lock
	logg      *logger.Logger
	metrics   *metrics.RefreshMetrics
	batchSize int
	now       func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case deps.Pairs == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tracked pair lister required")
	case deps.Source == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price source required")
	case deps.Prices == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price repository required")
	case deps.Audit == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.BatchSize <= 0 || deps.BatchSize > kroger.MaxProductsPerRequest {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		tx:        deps.Tx,
		pairs:     deps.Pairs,
		source:    deps.Source,
		prices:    deps.Prices,
		audit:     deps.Audit,
		lock:      deps.Lock,
		logg:      deps.Logger,
		metrics:   deps.Metrics,
		batchSize: deps.BatchSize,
		now:       deps.Now,
	}, nil
}

// Run refreshes every tracked store. A failing store is recorded to the error log and the
// run moves on to the next one; the returned error combines those failures. A run that finds
// another run in flight returns CONFLICT without doing any work.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	if !s.mu.TryLock() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "refresh already running")
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire refresh lock")
		}
		if !acquired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "refresh already running in another process")
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Error(ctx, "failed to release refresh lock", err)
			}
		}()
	}

	summary := &Summary{StartedAt: s.now().UTC()}
	pairs, err := s.pairs.TrackedPairs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list tracked products")
	}
	stores, byStore := groupByStore(pairs)
	summary.Stores = len(stores)
	summary.Products = len(pairs)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"stores": len(stores), "products": len(pairs)}), "price refresh starting")

	var failures error
	for _, storeID := range stores {
		if err := ctx.Err(); err != nil {
			failures = multierr.Append(failures, err)
			break
		}
		storeCtx := s.logg.WithStoreID(ctx, storeID)
		appended, skipped, err := s.refreshStore(storeCtx, storeID, byStore[storeID])
		summary.Skipped += skipped
		if err != nil {
			summary.StoresFailed++
			s.metrics.IncStoreFailed()
			msg := fmt.Sprintf("price refresh failed for store %s", storeID)
			if recErr := s.audit.Record(storeCtx, enums.ErrorLevelError, enums.ComponentScheduler, msg, err); recErr != nil {
				s.logg.Error(storeCtx, "failed to record refresh failure", recErr)
			}
			failures = multierr.Append(failures, fmt.Errorf("store %s: %w", storeID, err))
			continue
		}
		summary.Appended += appended
		s.metrics.AddAppended(storeID, appended)
	}

	summary.FinishedAt = s.now().UTC()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"appended":      summary.Appended,
		"skipped":       summary.Skipped,
		"stores_failed": summary.StoresFailed,
	}), "price refresh finished")

	if failures != nil {
		return summary, pkgerrors.Wrap(failureCode(failures), failures,
			fmt.Sprintf("%d of %d stores failed", summary.StoresFailed, summary.Stores))
	}
	return summary, nil
}

// failureCode is the code shared by every store failure, or UPSTREAM_ERROR when they differ.
func failureCode(failures error) pkgerrors.Code {
	errs := multierr.Errors(failures)
	code := pkgerrors.CodeOf(errs[0])
	for _, err := range errs[1:] {
		if pkgerrors.CodeOf(err) != code {
			return pkgerrors.CodeUpstream
		}
	}
	return code
}

// refreshStore fetches the store's products in batches and commits all usable prices in one
// transaction, so a failing store leaves no partial batch behind.
func (s *Service) refreshStore(ctx context.Context, storeID string, productIDs []string) (int, int, error) {
	capturedAt := s.now().UTC()
	var (
		points  []*models.PricePoint
		skipped int
	)
	for start := 0; start < len(productIDs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(productIDs) {
			end = len(productIDs)
		}
		records, err := s.source.GetPrices(ctx, productIDs[start:end], storeID)
		if err != nil {
			return 0, skipped, err
		}
		for _, record := range records {
			regular, promo, ok := record.UsablePrice()
			if !ok {
				skipped++
				s.metrics.IncSkipped("no_usable_price")
				continue
			}
			point, err := prices.NewPoint(prices.AppendInput{
				ProductID:  record.ProductID,
				StoreID:    storeID,
				Price:      regular,
				PromoPrice: promo,
				CapturedAt: capturedAt,
			})
			if err != nil {
				skipped++
				s.metrics.IncSkipped("invalid")
				continue
			}
			points = append(points, point)
		}
	}
	if len(points) == 0 {
		return 0, skipped, nil
	}

	var appended int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.prices.WithTx(tx)
		ordered, stale, err := prices.SplitOutOfOrder(ctx, txRepo, points)
		if err != nil {
			return err
		}
		for _, point := range stale {
			s.logg.Warn(s.logg.WithProductID(ctx, point.ProductID), "newer price already recorded; skipping")
			s.metrics.IncSkipped("out_of_order")
		}
		skipped += len(stale)
		appended = len(ordered)
		if len(ordered) == 0 {
			return nil
		}
		return prices.AppendInTx(ctx, txRepo, ordered...)
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodePersistence, err, "store price points")
		}
		return 0, skipped, err
	}
	return appended, skipped, nil
}

func groupByStore(pairs []baskets.TrackedPair) ([]string, map[string][]string) {
	var order []string
	byStore := map[string][]string{}
	for _, pair := range pairs {
		if _, ok := byStore[pair.StoreID]; !ok {
			order = append(order, pair.StoreID)
		}
		byStore[pair.StoreID] = append(byStore[pair.StoreID], pair.ProductID)
	}
	return order, byStore
}
