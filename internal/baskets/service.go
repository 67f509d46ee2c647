package baskets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/validation"
)

// DefaultMaxItems caps distinct products per basket when no limit is configured.
const DefaultMaxItems = 50

// CreateInput describes a new basket.
type CreateInput struct {
	Name       string `json:"name" validate:"required,max=120"`
	StoreID    string `json:"store_id" validate:"required,len=8,numeric"`
	IsTemplate bool   `json:"is_template"`
}

// AddItemInput adds or re-quantifies a product in a basket.
type AddItemInput struct {
	BasketID  uuid.UUID `json:"basket_id" validate:"required"`
	ProductID string    `json:"product_id" validate:"required,max=64"`
	Quantity  int       `json:"quantity" validate:"gte=1,lte=1000"`
}

// CloneInput copies a basket under a new name.
type CloneInput struct {
	SourceID uuid.UUID `json:"source_id" validate:"required"`
	Name     string    `json:"name" validate:"required,max=120"`
}

// Detail is a basket with its resolved items.
type Detail struct {
	Basket models.Basket `json:"basket"`
	Items  []ItemDetail  `json:"items"`
}

// Service manages basket lifecycle and membership.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Basket, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.BasketItem, error)
	Clone(ctx context.Context, input CloneInput) (*models.Basket, int, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, storeID string) ([]models.Basket, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TrackedPairs(ctx context.Context) ([]TrackedPair, error)
}

type service struct {
	tx       db.TxRunner
	repo     Repository
	maxItems int
	now      func() time.Time
}

// NewService wires the basket catalog. maxItems <= 0 falls back to DefaultMaxItems.
func NewService(tx db.TxRunner, repo Repository, maxItems int, now func() time.Time) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "basket repository required")
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if now == nil {
		now = time.Now
	}
	return &service{tx: tx, repo: repo, maxItems: maxItems, now: now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Basket, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.StoreID = strings.TrimSpace(input.StoreID)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	basket := &models.Basket{
		Name:       input.Name,
		StoreID:    input.StoreID,
		IsTemplate: input.IsTemplate,
		CreatedAt:  s.now().UTC(),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		exists, err := txRepo.StoreExists(ctx, basket.StoreID)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("store %s not found", basket.StoreID))
		}
		return txRepo.CreateBasket(ctx, basket)
	})
	if err != nil {
		return nil, repo.Translate(err, "basket")
	}
	return basket, nil
}

// AddItem inserts the product or overwrites its quantity. The capacity check only applies
// when the product is new to the basket.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.BasketItem, error) {
	input.ProductID = strings.TrimSpace(input.ProductID)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var stored *models.BasketItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindBasket(ctx, input.BasketID); err != nil {
			return repo.Translate(err, "basket")
		}
		exists, err := txRepo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", input.ProductID))
		}

		existing, err := txRepo.FindItem(ctx, input.BasketID, input.ProductID)
		if err != nil {
			return err
		}
		if existing == nil {
			count, err := txRepo.CountItems(ctx, input.BasketID)
			if err != nil {
				return err
			}
			if count >= int64(s.maxItems) {
				return pkgerrors.New(pkgerrors.CodeCapacity, fmt.Sprintf("basket already holds %d products", s.maxItems)).
					WithDetails(map[string]any{"max_items": s.maxItems})
			}
		}

		item := &models.BasketItem{
			BasketID:  input.BasketID,
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			AddedAt:   s.now().UTC(),
		}
		if existing != nil {
			item.AddedAt = existing.AddedAt
		}
		if err := txRepo.UpsertItem(ctx, item); err != nil {
			return err
		}
		stored = item
		return nil
	})
	if err != nil {
		return nil, repo.Translate(err, "basket item")
	}
	return stored, nil
}

// Clone copies every item of the source into a new non-template basket on the same store.
// Cloned items get fresh added_at stamps.
func (s *service) Clone(ctx context.Context, input CloneInput) (*models.Basket, int, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, 0, err
	}

	var (
		clone  *models.Basket
		copied int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		source, err := txRepo.FindBasket(ctx, input.SourceID)
		if err != nil {
			return repo.Translate(err, "basket")
		}
		items, err := txRepo.Items(ctx, source.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		parent := source.ID
		clone = &models.Basket{
			Name:           input.Name,
			StoreID:        source.StoreID,
			ParentBasketID: &parent,
			CreatedAt:      now,
		}
		if err := txRepo.CreateBasket(ctx, clone); err != nil {
			return err
		}

		copies := make([]models.BasketItem, 0, len(items))
		for _, item := range items {
			copies = append(copies, models.BasketItem{
				BasketID:  clone.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				AddedAt:   now,
			})
		}
		copied = len(copies)
		return txRepo.CreateItems(ctx, copies)
	})
	if err != nil {
		return nil, 0, repo.Translate(err, "basket")
	}
	return clone, copied, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	basket, err := s.repo.FindBasket(ctx, id)
	if err != nil {
		return nil, repo.Translate(err, "basket")
	}
	items, err := s.repo.ItemDetails(ctx, id)
	if err != nil {
		return nil, repo.Translate(err, "basket items")
	}
	return &Detail{Basket: *basket, Items: items}, nil
}

func (s *service) List(ctx context.Context, storeID string) ([]models.Basket, error) {
	baskets, err := s.repo.ListBaskets(ctx, strings.TrimSpace(storeID))
	if err != nil {
		return nil, repo.Translate(err, "baskets")
	}
	return baskets, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteBasket(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "basket not found")
		}
		return nil
	})
	return repo.Translate(err, "basket")
}

func (s *service) TrackedPairs(ctx context.Context) ([]TrackedPair, error) {
	pairs, err := s.repo.TrackedPairs(ctx)
	if err != nil {
		return nil, repo.Translate(err, "tracked products")
	}
	return pairs, nil
}
