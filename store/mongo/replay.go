package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/replay"
)

// MarkProcessed atomically claims the (tenant, event) pair. The unique
// index on (tenant_id, event_id) makes the insert race safe: exactly
// one writer succeeds, the rest see a duplicate key error.
func (s *Store) MarkProcessed(ctx context.Context, rec *replay.Record) (bool, error) {
	_, err := s.db.Collection(colReplays).InsertOne(ctx, toReplayModel(rec))
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("sentinel/mongo: mark processed: %w", err)
	}
	return true, nil
}

// IsProcessed reports whether the (tenant, event) pair has a record.
func (s *Store) IsProcessed(ctx context.Context, tenantID, eventID string) (bool, error) {
	count, err := s.db.Collection(colReplays).CountDocuments(ctx,
		bson.M{"tenant_id": tenantID, "event_id": eventID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("sentinel/mongo: is processed: %w", err)
	}
	return count > 0, nil
}

// GetReplay retrieves a replay record by tenant and event.
func (s *Store) GetReplay(ctx context.Context, tenantID, eventID string) (*replay.Record, error) {
	var m replayModel
	err := s.db.Collection(colReplays).FindOne(ctx,
		bson.M{"tenant_id": tenantID, "event_id": eventID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, sentinel.ErrReplayNotFound
		}
		return nil, fmt.Errorf("sentinel/mongo: get replay: %w", err)
	}
	return fromReplayModel(&m), nil
}

// ListReplay returns replay records matching the given options.
func (s *Store) ListReplay(ctx context.Context, opts replay.ListOpts) ([]*replay.Record, error) {
	filter := bson.M{}
	if opts.TenantID != "" {
		filter["tenant_id"] = opts.TenantID
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "tenant_id", Value: 1},
		{Key: "event_id", Value: 1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colReplays).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list replay: %w", err)
	}
	defer cursor.Close(ctx)

	var models []replayModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list replay decode: %w", err)
	}

	recs := make([]*replay.Record, 0, len(models))
	for i := range models {
		recs = append(recs, fromReplayModel(&models[i]))
	}
	return recs, nil
}

// DeleteReplay removes a single replay record.
func (s *Store) DeleteReplay(ctx context.Context, tenantID, eventID string) error {
	res, err := s.db.Collection(colReplays).DeleteOne(ctx,
		bson.M{"tenant_id": tenantID, "event_id": eventID})
	if err != nil {
		return fmt.Errorf("sentinel/mongo: delete replay: %w", err)
	}
	if res.DeletedCount == 0 {
		return sentinel.ErrReplayNotFound
	}
	return nil
}

// PurgeReplay removes all replay records for a tenant.
func (s *Store) PurgeReplay(ctx context.Context, tenantID string) (int64, error) {
	res, err := s.db.Collection(colReplays).DeleteMany(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return 0, fmt.Errorf("sentinel/mongo: purge replay: %w", err)
	}
	return res.DeletedCount, nil
}
