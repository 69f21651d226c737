package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"opmelink-api/internal/cache"
	"opmelink-api/internal/model"
	"opmelink-api/internal/repository"

	"go.uber.org/zap"
)

const implantKeyPrefix = "implant"

// CatalogService fronts the implant catalog with a read-through cache.
// Unknown barcodes are never cached, so an item added elsewhere is found
// on the next scan.
type CatalogService struct {
	repo   repository.ImplantRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(repo repository.ImplantRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: c, ttl: ttl, logger: logger.Named("catalog")}
}

func implantKey(ownerID, barcode string) string {
	return cache.Key(implantKeyPrefix, ownerID, barcode)
}

// GetImplant returns the catalog entry for barcode.
func (s *CatalogService) GetImplant(ctx context.Context, ownerID, barcode string) (*model.ImplantItem, error) {
	data, err := s.cache.GetOrSet(ctx, implantKey(ownerID, barcode), s.ttl, func() ([]byte, error) {
		item, err := s.repo.GetImplant(ctx, ownerID, barcode)
		if err != nil {
			return nil, err
		}
		return json.Marshal(item)
	})
	if err != nil {
		return nil, err
	}

	var item model.ImplantItem
	if err := json.Unmarshal(data, &item); err != nil {
		s.logger.Warn("discarding unreadable cached implant", zap.String("barcode", barcode), zap.Error(err))
		_ = s.cache.Delete(ctx, implantKey(ownerID, barcode))
		return s.repo.GetImplant(ctx, ownerID, barcode)
	}
	return &item, nil
}

// SaveImplant validates and stores a manual catalog entry.
func (s *CatalogService) SaveImplant(ctx context.Context, item model.ImplantItem) error {
	item.Barcode = strings.TrimSpace(item.Barcode)
	item.Name = strings.TrimSpace(item.Name)
	if item.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", model.ErrInvalidInput)
	}
	if item.Barcode == "" {
		return fmt.Errorf("%w: barcode is required", model.ErrInvalidInput)
	}
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.SaveImplant(ctx, item); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, implantKey(item.OwnerID, item.Barcode)); err != nil {
		s.logger.Warn("implant cache invalidation failed", zap.String("barcode", item.Barcode), zap.Error(err))
	}
	return nil
}

// ListImplants returns the owner's catalog.
func (s *CatalogService) ListImplants(ctx context.Context, ownerID string) ([]model.ImplantItem, error) {
	return s.repo.ListImplants(ctx, ownerID)
}

var _ repository.ImplantRepository = (*CatalogService)(nil)
