package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Orders lists orders for operators with the flag filters and ref code search.
func Orders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// MarkBeingDelivered flags the selected orders as shipped.
func MarkBeingDelivered(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return bulkOrderAction(logg, "orders service unavailable", svc != nil, func(ctx context.Context, ids []uuid.UUID) (int64, error) {
		return svc.MarkBeingDelivered(ctx, ids)
	})
}

// MarkReceived flags the selected orders as received by the buyer.
func MarkReceived(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return bulkOrderAction(logg, "orders service unavailable", svc != nil, func(ctx context.Context, ids []uuid.UUID) (int64, error) {
		return svc.MarkReceived(ctx, ids)
	})
}

// Addresses lists captured addresses for operators.
func Addresses(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildAddressFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAddresses(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func bulkOrderAction(logg *logger.Logger, unavailable string, ready bool, apply func(context.Context, []uuid.UUID) (int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, unavailable))
			return
		}

		var payload bulkOrdersRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := payload.ids()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := apply(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"requested": len(ids), "updated": updated})
			logg.Info(ctx, "operator.bulk_update")
		}
		responses.WriteSuccess(w, bulkResult{Updated: updated})
	}
}
