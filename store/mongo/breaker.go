package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// GetBreaker retrieves the breaker state for a tenant.
func (s *Store) GetBreaker(ctx context.Context, tenantID string) (*breaker.TenantState, error) {
	var m breakerModel
	err := s.db.Collection(colBreakers).FindOne(ctx, bson.M{"_id": tenantID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, sentinel.ErrBreakerNotFound
		}
		return nil, fmt.Errorf("sentinel/mongo: get breaker: %w", err)
	}
	return fromBreakerModel(&m), nil
}

// SaveBreaker creates or replaces a tenant's breaker state.
func (s *Store) SaveBreaker(ctx context.Context, st *breaker.TenantState) error {
	m := toBreakerModel(st)
	_, err := s.db.Collection(colBreakers).ReplaceOne(ctx,
		bson.M{"_id": m.TenantID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("sentinel/mongo: save breaker: %w", err)
	}
	return nil
}
