package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/tenant"
)

// GetTenantConfig retrieves the config for a tenant.
func (s *Store) GetTenantConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	var m tenantModel
	err := s.db.Collection(colTenants).FindOne(ctx, bson.M{"_id": tenantID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, sentinel.ErrTenantNotFound
		}
		return nil, fmt.Errorf("sentinel/mongo: get tenant config: %w", err)
	}
	return fromTenantModel(&m), nil
}

// SaveTenantConfig creates or replaces a tenant's config.
func (s *Store) SaveTenantConfig(ctx context.Context, cfg *tenant.Config) error {
	m := toTenantModel(cfg)
	_, err := s.db.Collection(colTenants).ReplaceOne(ctx,
		bson.M{"_id": m.TenantID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("sentinel/mongo: save tenant config: %w", err)
	}
	return nil
}

// ListTenantConfigs returns all explicitly configured tenants.
func (s *Store) ListTenantConfigs(ctx context.Context) ([]*tenant.Config, error) {
	cursor, err := s.db.Collection(colTenants).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list tenant configs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []tenantModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list tenant configs decode: %w", err)
	}

	cfgs := make([]*tenant.Config, 0, len(models))
	for i := range models {
		cfgs = append(cfgs, fromTenantModel(&models[i]))
	}
	return cfgs, nil
}
