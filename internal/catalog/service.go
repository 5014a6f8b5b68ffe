package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultPageSize matches the storefront home listing.
const DefaultPageSize = 10

type itemReader interface {
	FindBySlug(ctx context.Context, slug string) (*models.Item, error)
	List(ctx context.Context, offset, limit int, category *enums.ItemCategory) ([]models.Item, int64, error)
}

// Service exposes read-only catalog lookups.
type Service interface {
	GetBySlug(ctx context.Context, slug string) (*models.Item, error)
	List(ctx context.Context, input ListInput) (*ItemPage, error)
}

// ListInput selects one page of the catalog. Page is 1-based.
type ListInput struct {
	Page     int
	Category *enums.ItemCategory
}

// ItemDTO is the public shape of a catalog item.
type ItemDTO struct {
	Title         string             `json:"title"`
	Slug          string             `json:"slug"`
	Price         decimal.Decimal    `json:"price"`
	DiscountPrice *decimal.Decimal   `json:"discount_price,omitempty"`
	Category      enums.ItemCategory `json:"category"`
	Label         enums.ItemLabel    `json:"label"`
	Description   string             `json:"description"`
	ImageURL      string             `json:"image_url"`
}

// ItemPage is one page of the catalog listing.
type ItemPage struct {
	Items      []ItemDTO `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalItems int64     `json:"total_items"`
	HasNext    bool      `json:"has_next"`
}

type service struct {
	repo     itemReader
	pageSize int
}

// NewService builds the catalog service. A non-positive pageSize falls back
// to DefaultPageSize.
func NewService(repo itemReader, pageSize int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &service{repo: repo, pageSize: pageSize}, nil
}

// GetBySlug resolves a single item or returns NOT_FOUND.
func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Item, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item slug is required")
	}
	item, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ItemPage, error) {
	page := input.Page
	if page <= 0 {
		page = 1
	}
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item category")
	}

	rows, total, err := s.repo.List(ctx, (page-1)*s.pageSize, s.pageSize, input.Category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}

	items := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToItemDTO(row))
	}
	return &ItemPage{
		Items:      items,
		Page:       page,
		PageSize:   s.pageSize,
		TotalItems: total,
		HasNext:    int64(page*s.pageSize) < total,
	}, nil
}

// ToItemDTO maps the persisted item to its public shape.
func ToItemDTO(item models.Item) ItemDTO {
	return ItemDTO{
		Title:         item.Title,
		Slug:          item.Slug,
		Price:         item.Price,
		DiscountPrice: item.DiscountPrice,
		Category:      item.Category,
		Label:         item.Label,
		Description:   item.Description,
		ImageURL:      item.ImageURL,
	}
}
