package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

type basketDTO struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	StoreID        string     `json:"store_id"`
	IsTemplate     bool       `json:"is_template"`
	ParentBasketID *uuid.UUID `json:"parent_basket_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newBasketDTO(b models.Basket) basketDTO {
	return basketDTO{
		ID:             b.ID,
		Name:           b.Name,
		StoreID:        b.StoreID,
		IsTemplate:     b.IsTemplate,
		ParentBasketID: b.ParentBasketID,
		CreatedAt:      b.CreatedAt.UTC(),
	}
}

type basketDetailDTO struct {
	basketDTO
	Items []baskets.ItemDetail `json:"items"`
}

type basketItemDTO struct {
	BasketID  uuid.UUID `json:"basket_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func newBasketItemDTO(item models.BasketItem) basketItemDTO {
	return basketItemDTO{
		BasketID:  item.BasketID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		AddedAt:   item.AddedAt.UTC(),
	}
}

type errorLogDTO struct {
	ID         uuid.UUID  `json:"id"`
	Level      string     `json:"level"`
	Component  string     `json:"component"`
	Message    string     `json:"message"`
	Details    *string    `json:"details,omitempty"`
	LoggedAt   time.Time  `json:"logged_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func newErrorLogDTO(entry models.ErrorLog) errorLogDTO {
	return errorLogDTO{
		ID:         entry.ID,
		Level:      entry.Level.String(),
		Component:  entry.Component.String(),
		Message:    entry.Message,
		Details:    entry.Details,
		LoggedAt:   entry.LoggedAt.UTC(),
		Resolved:   entry.Resolved,
		ResolvedAt: entry.ResolvedAt,
	}
}

type pricePointDTO struct {
	ProductID  string              `json:"product_id"`
	StoreID    string              `json:"store_id"`
	Price      decimal.Decimal     `json:"price"`
	PromoPrice decimal.NullDecimal `json:"promo_price"`
	CapturedAt time.Time           `json:"captured_at"`
}

func newPricePointDTO(p models.PricePoint) pricePointDTO {
	return pricePointDTO{
		ProductID:  p.ProductID,
		StoreID:    p.StoreID,
		Price:      p.Price,
		PromoPrice: p.PromoPrice,
		CapturedAt: p.CapturedAt.UTC(),
	}
}
