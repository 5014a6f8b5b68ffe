package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type bulkOrdersRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,max=200,dive,uuid"`
}

type bulkResult struct {
	Updated int64 `json:"updated"`
}

func (b bulkOrdersRequest) ids() ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(b.OrderIDs))
	for _, raw := range b.OrderIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid order id %q", raw))
		}
		out = append(out, id)
	}
	return out, nil
}

func operatorID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func parseBoolParam(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s %q", key, raw))
	}
	return &value, nil
}

func parseUUIDParam(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s %q", key, raw))
	}
	return &id, nil
}

func buildOrderFilters(r *http.Request) (internalorders.OrderFilters, error) {
	var filters internalorders.OrderFilters
	var err error

	if filters.UserID, err = parseUUIDParam(r, "user_id"); err != nil {
		return filters, err
	}
	if filters.Ordered, err = parseBoolParam(r, "ordered"); err != nil {
		return filters, err
	}
	if filters.BeingDelivered, err = parseBoolParam(r, "being_delivered"); err != nil {
		return filters, err
	}
	if filters.Received, err = parseBoolParam(r, "received"); err != nil {
		return filters, err
	}
	if filters.RefundRequested, err = parseBoolParam(r, "refund_requested"); err != nil {
		return filters, err
	}
	if filters.RefundGranted, err = parseBoolParam(r, "refund_granted"); err != nil {
		return filters, err
	}
	filters.RefCode = validators.SanitizeString(r.URL.Query().Get("q"), 20)
	return filters, nil
}

func buildAddressFilters(r *http.Request) (internalorders.AddressFilters, error) {
	var filters internalorders.AddressFilters
	if raw := strings.TrimSpace(r.URL.Query().Get("address_type")); raw != "" {
		addressType, err := enums.ParseAddressType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid address_type %q", raw))
		}
		filters.AddressType = &addressType
	}
	isDefault, err := parseBoolParam(r, "default")
	if err != nil {
		return filters, err
	}
	filters.IsDefault = isDefault
	filters.Country = strings.ToUpper(validators.SanitizeString(r.URL.Query().Get("country"), 2))
	return filters, nil
}

func buildRefundFilters(r *http.Request) (refunds.ListFilters, error) {
	var filters refunds.ListFilters
	var err error
	if filters.Accepted, err = parseBoolParam(r, "accepted"); err != nil {
		return filters, err
	}
	if filters.OrderID, err = parseUUIDParam(r, "order_id"); err != nil {
		return filters, err
	}
	return filters, nil
}

func refundIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "refundId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund id")
	}
	return id, nil
}
