package prices

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

// AppendInput is one observed price.
type AppendInput struct {
	ProductID  string
	StoreID    string
	Price      decimal.Decimal
	PromoPrice decimal.NullDecimal
	CapturedAt time.Time
}

// Service is the append/query surface of the price series.
type Service interface {
	Append(ctx context.Context, input AppendInput) (*models.PricePoint, error)
	Query(ctx context.Context, productID, storeID string, rng TimeRange) ([]models.PricePoint, error)
}

type service struct {
	tx   db.TxRunner
	repo Repository
	now  func() time.Time
}

// NewService wires the price series. now stamps points appended without a capture time.
func NewService(tx db.TxRunner, repo Repository, now func() time.Time) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{tx: tx, repo: repo, now: now}, nil
}

// Append validates and stores one point inside its own transaction.
func (s *service) Append(ctx context.Context, input AppendInput) (*models.PricePoint, error) {
	if input.CapturedAt.IsZero() {
		input.CapturedAt = s.now()
	}
	point, err := NewPoint(input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return AppendInTx(ctx, s.repo.WithTx(tx), point)
	})
	if err != nil {
		return nil, repo.Translate(err, "price point")
	}
	return point, nil
}

// Query returns the partition ascending by captured_at. Calling it again without new
// appends yields the same sequence.
func (s *service) Query(ctx context.Context, productID, storeID string, rng TimeRange) ([]models.PricePoint, error) {
	productID = strings.TrimSpace(productID)
	storeID = strings.TrimSpace(storeID)
	if productID == "" || storeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id are required")
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time range end precedes its start")
	}
	points, err := s.repo.Series(ctx, productID, storeID, rng)
	if err != nil {
		return nil, repo.Translate(err, "price series")
	}
	return points, nil
}

// NewPoint validates input and builds the row. Prices must be positive; a non-positive
// promo is dropped since it carries no information.
func NewPoint(input AppendInput) (*models.PricePoint, error) {
	productID := strings.TrimSpace(input.ProductID)
	storeID := strings.TrimSpace(input.StoreID)
	if productID == "" || storeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id are required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if input.CapturedAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captured_at is required")
	}
	promo := input.PromoPrice
	if promo.Valid && !promo.Decimal.IsPositive() {
		promo = decimal.NullDecimal{}
	}
	return &models.PricePoint{
		ProductID:  productID,
		StoreID:    storeID,
		Price:      input.Price,
		PromoPrice: promo,
		CapturedAt: input.CapturedAt.UTC(),
	}, nil
}

// SplitOutOfOrder separates points captured at or after the newest point of their partition
// from those captured before it. Callers append the first slice and skip the second.
func SplitOutOfOrder(ctx context.Context, txRepo Repository, points []*models.PricePoint) ([]*models.PricePoint, []*models.PricePoint, error) {
	var ordered, stale []*models.PricePoint
	for _, point := range points {
		latest, err := txRepo.Latest(ctx, point.ProductID, point.StoreID)
		if err != nil {
			return nil, nil, err
		}
		if latest != nil && point.CapturedAt.Before(latest.CapturedAt) {
			stale = append(stale, point)
			continue
		}
		ordered = append(ordered, point)
	}
	return ordered, stale, nil
}

// AppendInTx stores points through a transaction-bound repository, rejecting any point
// captured before the newest point already in its partition.
func AppendInTx(ctx context.Context, txRepo Repository, points ...*models.PricePoint) error {
	for _, point := range points {
		latest, err := txRepo.Latest(ctx, point.ProductID, point.StoreID)
		if err != nil {
			return err
		}
		if latest != nil && point.CapturedAt.Before(latest.CapturedAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "captured_at precedes the latest point of the series")
		}
	}
	return txRepo.Create(ctx, points...)
}
