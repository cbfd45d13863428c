package cache

import (
	"context"
	"time"

	"bumdespos/terminal/internal/domain"
)

// SnapshotCache keeps short-lived copies of gateway catalog reads so the
// cashier screen stays responsive between refreshes. Misses are never errors.
type SnapshotCache interface {
	GetProducts(ctx context.Context, key string) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, key string, products []domain.Product, ttl time.Duration) error
	GetCustomers(ctx context.Context, key string) ([]domain.Customer, bool, error)
	SetCustomers(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error
}

type NoopSnapshotCache struct{}

func (NoopSnapshotCache) GetProducts(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) SetProducts(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopSnapshotCache) GetCustomers(_ context.Context, _ string) ([]domain.Customer, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) SetCustomers(_ context.Context, _ string, _ []domain.Customer, _ time.Duration) error {
	return nil
}
