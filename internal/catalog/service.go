package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/prices"
	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/kroger"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// Source is the subset of the catalog client the service needs.
type Source interface {
	FindStores(ctx context.Context, postalCode string, limit int) ([]kroger.StoreRecord, error)
	SearchProducts(ctx context.Context, term, storeID string, limit int) ([]kroger.ProductRecord, error)
	GetPrice(ctx context.Context, productID, storeID string) (kroger.PriceRecord, error)
}

// TrackResult reports the basket item written by TrackProduct and whether the price series
// was seeded for it.
type TrackResult struct {
	Item   *models.BasketItem
	Seeded *models.PricePoint
}

// Service syncs reference data from the external catalog and seeds price series.
type Service interface {
	FindNearbyStores(ctx context.Context, postalCode string, limit int) ([]models.Store, error)
	SearchProducts(ctx context.Context, term, storeID string, limit int) ([]models.Product, error)
	LookupPrice(ctx context.Context, productID, storeID string) (*models.PricePoint, error)
	TrackProduct(ctx context.Context, input baskets.AddItemInput) (*TrackResult, error)
}

// Deps groups catalog collaborators.
type Deps struct {
	Tx      db.TxRunner
	Source  Source
	Repo    Repository
	Prices  prices.Repository
	Baskets baskets.Service
	Basket  baskets.Repository
	Audit   audit.Recorder
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	tx        db.TxRunner
	source    Source
	repo      Repository
	prices    prices.Repository
	baskets   baskets.Service
	basketRep baskets.Repository
	audit     audit.Recorder
	logg      *logger.Logger
	now       func() time.Time
}

// NewService validates deps and returns the catalog service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case deps.Source == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog source required")
	case deps.Repo == nil || deps.Prices == nil || deps.Basket == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog, price and basket repositories required")
	case deps.Baskets == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "basket service required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		tx:        deps.Tx,
		source:    deps.Source,
		repo:      deps.Repo,
		prices:    deps.Prices,
		baskets:   deps.Baskets,
		basketRep: deps.Basket,
		audit:     deps.Audit,
		logg:      deps.Logger,
		now:       deps.Now,
	}, nil
}

// FindNearbyStores fetches locations near postalCode and upserts them.
func (s *service) FindNearbyStores(ctx context.Context, postalCode string, limit int) ([]models.Store, error) {
	records, err := s.source.FindStores(ctx, postalCode, limit)
	if err != nil {
		return nil, err
	}

	stores := make([]models.Store, 0, len(records))
	for _, record := range records {
		if kroger.ValidateStoreID(record.LocationID) != nil {
			s.logg.Warn(s.logg.WithField(ctx, "location_id", record.LocationID), "skipping location with malformed id")
			continue
		}
		stores = append(stores, storeFromRecord(record))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).UpsertStores(ctx, stores)
	})
	if err != nil {
		return nil, repo.Translate(err, "store")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"postal_code": postalCode, "stores": len(stores)}), "stores synced")
	return stores, nil
}

// SearchProducts searches the catalog at storeID and upserts the matches with their
// categories.
func (s *service) SearchProducts(ctx context.Context, term, storeID string, limit int) ([]models.Product, error) {
	records, err := s.source.SearchProducts(ctx, term, storeID, limit)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		products = make([]models.Product, 0, len(records))
		categories := map[string]*models.Category{}
		seen := map[string]bool{}
		for _, record := range records {
			if strings.TrimSpace(record.ProductID) == "" || seen[record.ProductID] {
				continue
			}
			seen[record.ProductID] = true
			product := productFromRecord(record)
			if name := record.Category(); name != "" {
				category, ok := categories[name]
				if !ok {
					category, err = txRepo.EnsureCategory(ctx, name)
					if err != nil {
						return err
					}
					categories[name] = category
				}
				id := category.ID
				product.CategoryID = &id
			}
			products = append(products, product)
		}
		return txRepo.UpsertProducts(ctx, products)
	})
	if err != nil {
		return nil, repo.Translate(err, "product")
	}
	return products, nil
}

// LookupPrice fetches the current price synchronously and appends it to the series. Source
// failures surface to the caller.
func (s *service) LookupPrice(ctx context.Context, productID, storeID string) (*models.PricePoint, error) {
	productID = strings.TrimSpace(productID)
	storeID = strings.TrimSpace(storeID)
	if err := s.ensureKnown(ctx, productID, storeID); err != nil {
		return nil, err
	}

	record, err := s.source.GetPrice(ctx, productID, storeID)
	if err != nil {
		return nil, err
	}
	regular, promo, ok := record.UsablePrice()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no price for product %s at store %s", productID, storeID))
	}

	point, err := prices.NewPoint(prices.AppendInput{
		ProductID:  productID,
		StoreID:    storeID,
		Price:      regular,
		PromoPrice: promo,
		CapturedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return prices.AppendInTx(ctx, s.prices.WithTx(tx), point)
	})
	if err != nil {
		return nil, repo.Translate(err, "price point")
	}
	return point, nil
}

// TrackProduct adds the product to the basket and, when its series at the basket's store is
// still empty, seeds it with one observed price. Seeding failures are audited and do not undo
// the add.
func (s *service) TrackProduct(ctx context.Context, input baskets.AddItemInput) (*TrackResult, error) {
	item, err := s.baskets.AddItem(ctx, input)
	if err != nil {
		return nil, err
	}
	result := &TrackResult{Item: item}

	basket, err := s.basketRep.FindBasket(ctx, input.BasketID)
	if err != nil {
		return nil, repo.Translate(err, "basket")
	}
	latest, err := s.prices.Latest(ctx, item.ProductID, basket.StoreID)
	if err != nil {
		return nil, repo.Translate(err, "price series")
	}
	if latest != nil {
		return result, nil
	}

	point, err := s.LookupPrice(ctx, item.ProductID, basket.StoreID)
	if err != nil {
		msg := fmt.Sprintf("initial price seeding failed for product %s at store %s", item.ProductID, basket.StoreID)
		if s.audit != nil {
			if recErr := s.audit.Record(ctx, enums.ErrorLevelWarning, enums.ComponentCatalog, msg, err); recErr != nil {
				s.logg.Error(ctx, "failed to record seeding failure", recErr)
			}
		} else {
			s.logg.Warn(ctx, msg)
		}
		return result, nil
	}
	result.Seeded = point
	return result, nil
}

func (s *service) ensureKnown(ctx context.Context, productID, storeID string) error {
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := kroger.ValidateStoreID(storeID); err != nil {
		return err
	}
	if _, err := s.repo.FindStore(ctx, storeID); err != nil {
		return repo.Translate(err, "store")
	}
	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		return repo.Translate(err, "product")
	}
	return nil
}

func storeFromRecord(record kroger.StoreRecord) models.Store {
	store := models.Store{
		StoreID: record.LocationID,
		Name:    strings.TrimSpace(record.Name),
		Hours:   record.StoreHours(),
	}
	if store.Name == "" {
		store.Name = record.LocationID
	}
	if line := record.Address.Line(); line != "" {
		store.Address = &line
	}
	if zip := strings.TrimSpace(record.Address.ZipCode); zip != "" {
		store.PostalCode = &zip
	}
	if record.Geolocation.Latitude != 0 || record.Geolocation.Longitude != 0 {
		lat, lng := record.Geolocation.Latitude, record.Geolocation.Longitude
		store.Latitude = &lat
		store.Longitude = &lng
	}
	return store
}

func productFromRecord(record kroger.ProductRecord) models.Product {
	product := models.Product{
		ProductID:   record.ProductID,
		Name:        strings.TrimSpace(record.Description),
		UPC:         optional(record.UPC),
		Brand:       optional(record.Brand),
		Description: optional(record.Description),
		Size:        optional(record.Size()),
		ImageURL:    optional(record.ImageURL()),
	}
	if product.Name == "" {
		product.Name = record.ProductID
	}
	return product
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
