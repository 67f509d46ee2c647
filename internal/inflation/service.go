package inflation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/prices"
	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/metrics"
)

// SnapshotRunner runs fn in a transaction whose reads observe one snapshot.
type SnapshotRunner interface {
	WithSnapshotTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CategoryResult is the index of one product category within a basket.
type CategoryResult struct {
	CategoryID       uuid.UUID `json:"category_id"`
	CategoryName     string    `json:"category_name,omitempty"`
	InflationPercent float64   `json:"inflation_percent"`
	CurrentIndex     float64   `json:"current_index"`
	BaseDate         time.Time `json:"base_date"`
	ItemsResolved    int       `json:"items_resolved"`
}

// Result is the outcome of one calculation or the stored state read by Report.
type Result struct {
	BasketID         uuid.UUID        `json:"basket_id"`
	InflationPercent float64          `json:"inflation_percent"`
	BaseIndex        float64          `json:"base_index"`
	CurrentIndex     float64          `json:"current_index"`
	BaseDate         time.Time        `json:"base_date"`
	CalculatedAt     time.Time        `json:"calculated_at"`
	ItemsResolved    int              `json:"items_resolved"`
	ItemsSkipped     int              `json:"items_skipped"`
	Categories       []CategoryResult `json:"categories,omitempty"`
}

// Service computes and reads basket inflation indices.
type Service interface {
	Calculate(ctx context.Context, basketID uuid.UUID) (*Result, error)
	Report(ctx context.Context, basketID uuid.UUID) (*Result, error)
}

// Deps groups the collaborators of the calculator.
type Deps struct {
	Tx      SnapshotRunner
	Baskets baskets.Repository
	Prices  prices.Repository
	Indices Repository
	Audit   audit.Recorder
	Logger  *logger.Logger
	Metrics *metrics.InflationMetrics
	Now     func() time.Time
}

type service struct {
	tx      SnapshotRunner
	baskets baskets.Repository
	prices  prices.Repository
	indices Repository
	audit   audit.Recorder
	logg    *logger.Logger
	metrics *metrics.InflationMetrics
	now     func() time.Time
}

// NewService validates deps and returns the calculator.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot transaction runner required")
	}
	if deps.Baskets == nil || deps.Prices == nil || deps.Indices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "basket, price and index repositories required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		tx:      deps.Tx,
		baskets: deps.Baskets,
		prices:  deps.Prices,
		indices: deps.Indices,
		audit:   deps.Audit,
		logg:    deps.Logger,
		metrics: deps.Metrics,
		now:     deps.Now,
	}, nil
}

type lookupFailure struct {
	productID string
	err       error
}

// Calculate recomputes the basket's overall and category indices from the price series and
// replaces the stored rows. Calling it again without new price points yields the same values.
func (s *service) Calculate(ctx context.Context, basketID uuid.UUID) (*Result, error) {
	ctx = s.logg.WithBasketID(ctx, basketID.String())

	var (
		result   *Result
		failures []lookupFailure
	)
	err := s.tx.WithSnapshotTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, failures, err = s.calculate(ctx, tx, basketID)
		return err
	})

	s.recordFailures(ctx, basketID, failures)
	if err != nil {
		err = repo.Translate(err, "inflation index")
		s.metrics.IncFailure(string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.Observe(result.InflationPercent)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"inflation_percent": result.InflationPercent,
		"items_resolved":    result.ItemsResolved,
		"items_skipped":     result.ItemsSkipped,
	}), "inflation calculated")
	return result, nil
}

func (s *service) calculate(ctx context.Context, tx *gorm.DB, basketID uuid.UUID) (*Result, []lookupFailure, error) {
	basketRepo := s.baskets.WithTx(tx)
	priceRepo := s.prices.WithTx(tx)
	indexRepo := s.indices.WithTx(tx)

	basket, err := basketRepo.FindBasket(ctx, basketID)
	if err != nil {
		return nil, nil, repo.Translate(err, "basket")
	}
	items, err := basketRepo.ItemDetails(ctx, basketID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeEmptyBasket, fmt.Sprintf("basket %s has no items", basketID))
	}

	createdAt := basket.CreatedAt.UTC()
	series := make(map[string][]models.PricePoint, len(items))
	var failures []lookupFailure
	for _, item := range items {
		if _, seen := series[item.ProductID]; seen {
			continue
		}
		points, err := priceRepo.Series(ctx, item.ProductID, basket.StoreID, prices.TimeRange{})
		if err != nil {
			failures = append(failures, lookupFailure{productID: item.ProductID, err: err})
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID), "price series lookup failed")
			continue
		}
		series[item.ProductID] = points
	}

	var overall accumulator
	categories := map[uuid.UUID]*accumulator{}
	for _, item := range items {
		itemCtx := s.logg.WithProductID(ctx, item.ProductID)
		var category *accumulator
		if item.CategoryID != nil {
			category = categories[*item.CategoryID]
			if category == nil {
				category = &accumulator{}
				categories[*item.CategoryID] = category
			}
		}

		base, current, ok := selectPrices(series[item.ProductID], createdAt)
		if !ok {
			overall.skip()
			if category != nil {
				category.skip()
			}
			s.logg.Debug(itemCtx, "no base price at or before basket creation; item skipped")
			continue
		}
		s.logg.Debug(s.logg.WithFields(itemCtx, map[string]any{
			"base_price":    base.Price.String(),
			"base_at":       base.CapturedAt,
			"current_price": current.Price.String(),
			"current_at":    current.CapturedAt,
			"quantity":      item.Quantity,
		}), "base and current price selected")

		overall.add(base, current, item.Quantity)
		if category != nil {
			category.add(base, current, item.Quantity)
		}
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"total_base":    overall.totalBase.String(),
		"total_current": overall.totalCurrent.String(),
	}), "totals accumulated")

	calculatedAt := s.now().UTC()
	row := overall.index(basket.ID, models.ScopeOverall, nil, createdAt, calculatedAt)
	if err := indexRepo.Upsert(ctx, row); err != nil {
		return nil, failures, err
	}

	result := resultFromRow(*row)
	keep := make([]string, 0, len(categories))
	for categoryID, acc := range categories {
		if acc.resolved == 0 {
			continue
		}
		id := categoryID
		catRow := acc.index(basket.ID, models.CategoryScope(id), &id, createdAt, calculatedAt)
		if err := indexRepo.Upsert(ctx, catRow); err != nil {
			return nil, failures, err
		}
		keep = append(keep, catRow.Scope)
		result.Categories = append(result.Categories, categoryFromRow(*catRow, ""))
	}
	if err := indexRepo.PruneCategories(ctx, basket.ID, keep); err != nil {
		return nil, failures, err
	}
	sortCategories(result.Categories)

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"current_index":   row.CurrentIndex,
		"category_scopes": len(keep),
	}), "index upserted")
	return &result, failures, nil
}

// Report returns the stored indices of a basket without recalculating.
func (s *service) Report(ctx context.Context, basketID uuid.UUID) (*Result, error) {
	if _, err := s.baskets.FindBasket(ctx, basketID); err != nil {
		return nil, repo.Translate(err, "basket")
	}
	rows, err := s.indices.Indices(ctx, basketID)
	if err != nil {
		return nil, repo.Translate(err, "inflation index")
	}

	var result *Result
	var categories []CategoryResult
	for _, row := range rows {
		if row.Scope == models.ScopeOverall {
			r := resultFromRow(row.InflationIndex)
			result = &r
			continue
		}
		categories = append(categories, categoryFromRow(row.InflationIndex, row.CategoryName))
	}
	if result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inflation has not been calculated for this basket")
	}
	sortCategories(categories)
	result.Categories = categories
	return result, nil
}

func (s *service) recordFailures(ctx context.Context, basketID uuid.UUID, failures []lookupFailure) {
	if s.audit == nil {
		return
	}
	for _, failure := range failures {
		msg := fmt.Sprintf("price lookup for product %s in basket %s failed; item excluded", failure.productID, basketID)
		if err := s.audit.Record(ctx, enums.ErrorLevelWarning, enums.ComponentCalculator, msg, failure.err); err != nil {
			s.logg.Error(ctx, "failed to record calculator diagnostic", err)
		}
	}
}

func resultFromRow(row models.InflationIndex) Result {
	return Result{
		BasketID:         row.BasketID,
		InflationPercent: row.InflationPercent,
		BaseIndex:        row.BaseIndex,
		CurrentIndex:     row.CurrentIndex,
		BaseDate:         row.BaseDate.UTC(),
		CalculatedAt:     row.CalculatedAt.UTC(),
		ItemsResolved:    row.ItemsResolved,
		ItemsSkipped:     row.ItemsSkipped,
	}
}

func categoryFromRow(row models.InflationIndex, name string) CategoryResult {
	out := CategoryResult{
		CategoryName:     name,
		InflationPercent: row.InflationPercent,
		CurrentIndex:     row.CurrentIndex,
		BaseDate:         row.BaseDate.UTC(),
		ItemsResolved:    row.ItemsResolved,
	}
	if row.CategoryID != nil {
		out.CategoryID = *row.CategoryID
	}
	return out
}

func sortCategories(categories []CategoryResult) {
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].CategoryID.String() < categories[j].CategoryID.String()
	})
}
