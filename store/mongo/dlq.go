package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// PushDLQ adds a dead-lettered execution to the store.
func (s *Store) PushDLQ(ctx context.Context, msg *dlq.Message) error {
	if _, err := s.db.Collection(colDLQ).InsertOne(ctx, toDLQModel(msg)); err != nil {
		return fmt.Errorf("sentinel/mongo: push dlq: %w", err)
	}
	return nil
}

// GetDLQ retrieves a dead-letter message by ID.
func (s *Store) GetDLQ(ctx context.Context, msgID id.DLQID) (*dlq.Message, error) {
	var m dlqMessageModel
	err := s.db.Collection(colDLQ).FindOne(ctx, bson.M{"_id": msgID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, sentinel.ErrDLQNotFound
		}
		return nil, fmt.Errorf("sentinel/mongo: get dlq: %w", err)
	}
	return fromDLQModel(&m)
}

// ListDLQ returns dead-letter messages matching the given options,
// newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	filter := bson.M{}
	if opts.TenantID != "" {
		filter["tenant_id"] = opts.TenantID
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colDLQ).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list dlq: %w", err)
	}
	defer cursor.Close(ctx)

	var models []dlqMessageModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("sentinel/mongo: list dlq decode: %w", err)
	}

	msgs := make([]*dlq.Message, 0, len(models))
	for i := range models {
		m, convErr := fromDLQModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("sentinel/mongo: list dlq convert: %w", convErr)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// UpdateDLQ replaces a stored dead-letter message.
func (s *Store) UpdateDLQ(ctx context.Context, msg *dlq.Message) error {
	m := toDLQModel(msg)
	res, err := s.db.Collection(colDLQ).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("sentinel/mongo: update dlq: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// DeleteDLQ removes a dead-letter message by ID.
func (s *Store) DeleteDLQ(ctx context.Context, msgID id.DLQID) error {
	res, err := s.db.Collection(colDLQ).DeleteOne(ctx, bson.M{"_id": msgID.String()})
	if err != nil {
		return fmt.Errorf("sentinel/mongo: delete dlq: %w", err)
	}
	if res.DeletedCount == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// PurgeExpiredDLQ removes messages whose retention elapsed at now.
func (s *Store) PurgeExpiredDLQ(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.Collection(colDLQ).DeleteMany(ctx,
		bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("sentinel/mongo: purge expired dlq: %w", err)
	}
	return res.DeletedCount, nil
}

// CountDLQ returns the number of stored messages for a tenant, or for
// all tenants when tenantID is empty.
func (s *Store) CountDLQ(ctx context.Context, tenantID string) (int64, error) {
	filter := bson.M{}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	count, err := s.db.Collection(colDLQ).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("sentinel/mongo: count dlq: %w", err)
	}
	return count, nil
}
