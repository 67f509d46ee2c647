package controllers

import (
	"net/http"

	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/api/validators"
	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

type createBasketRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	StoreID    string `json:"store_id" validate:"required,len=8,numeric"`
	IsTemplate bool   `json:"is_template"`
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  *int   `json:"quantity,omitempty" validate:"omitempty,gte=1,lte=1000"`
}

type cloneBasketRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func BasketCreate(svc baskets.Service, rec audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createBasketRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		basket, err := svc.Create(r.Context(), baskets.CreateInput{
			Name:       payload.Name,
			StoreID:    payload.StoreID,
			IsTemplate: payload.IsTemplate,
		})
		if err != nil {
			writeFailure(r.Context(), rec, logg, w, "create basket", err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBasketDTO(*basket))
	}
}

func BasketGet(svc baskets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := detail.Items
		if items == nil {
			items = []baskets.ItemDetail{}
		}
		responses.WriteSuccess(w, basketDetailDTO{basketDTO: newBasketDTO(detail.Basket), Items: items})
	}
}

// BasketAddItem adds a product to the basket, defaulting the quantity to 1. Re-adding a product
// overwrites its quantity.
func BasketAddItem(svc baskets.Service, rec audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := 1
		if payload.Quantity != nil {
			quantity = *payload.Quantity
		}

		item, err := svc.AddItem(r.Context(), baskets.AddItemInput{
			BasketID:  id,
			ProductID: payload.ProductID,
			Quantity:  quantity,
		})
		if err != nil {
			writeFailure(r.Context(), rec, logg, w, "add basket item", err)
			return
		}
		responses.WriteSuccess(w, newBasketItemDTO(*item))
	}
}

func BasketClone(svc baskets.Service, rec audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cloneBasketRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clone, copied, err := svc.Clone(r.Context(), baskets.CloneInput{SourceID: id, Name: payload.Name})
		if err != nil {
			writeFailure(r.Context(), rec, logg, w, "clone basket", err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"basket":       newBasketDTO(*clone),
			"items_copied": copied,
		})
	}
}

func BasketDelete(svc baskets.Service, rec audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeFailure(r.Context(), rec, logg, w, "delete basket", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// BasketList filters by the store_id query parameter when present.
func BasketList(svc baskets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := r.URL.Query().Get("store_id")
		if storeID != "" && len(storeID) != 8 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "store_id must be 8 characters"))
			return
		}
		list, err := svc.List(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]basketDTO, 0, len(list))
		for _, b := range list {
			out = append(out, newBasketDTO(b))
		}
		responses.WritePage(w, out, len(out), "")
	}
}
