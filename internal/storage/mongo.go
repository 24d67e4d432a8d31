// Package storage adapts the MongoDB driver to the validation.Store surface.
// Legacy field-name fallbacks live here, at the adapter boundary, so the
// validation logic only ever sees one resolved create_time value.
package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stonexiaolei/tuzhan-data/internal/validation"
)

// timestampField is the canonical timestamp field written by the ingestion
// pipeline; the rest are legacy spellings seen in older collections.
const timestampField = "create_time"

var legacyTimestampFields = []string{"CreateTime", "createTime", "createdAt"}

const chainField = "chain_id"

// Mongo implements validation.Store over one database handle
type Mongo struct {
	db *mongo.Database
}

// NewMongo creates a Mongo store over db
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// FindLatest returns the newest record for the chain, projecting only the
// timestamp field candidates, sorted descending by create_time.
func (s *Mongo) FindLatest(ctx context.Context, collection string, chainID int64) (*validation.Record, error) {
	projection := bson.D{{Key: timestampField, Value: 1}}
	for _, f := range legacyTimestampFields {
		projection = append(projection, bson.E{Key: f, Value: 1})
	}

	opts := options.FindOne().
		SetProjection(projection).
		SetSort(bson.D{{Key: timestampField, Value: -1}})

	var doc bson.M
	err := s.db.Collection(collection).
		FindOne(ctx, bson.M{chainField: chainID}, opts).
		Decode(&doc)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest in %s: %w", collection, err)
	}

	if v, ok := doc[timestampField]; ok && v != nil {
		return &validation.Record{CreateTime: v}, nil
	}
	for _, f := range legacyTimestampFields {
		if v, ok := doc[f]; ok && v != nil {
			return &validation.Record{CreateTime: v}, nil
		}
	}

	// Document exists but carries no timestamp; treated like no record
	return nil, nil
}

// CountMatching counts records for the chain, optionally bounded on create_time
func (s *Mongo) CountMatching(ctx context.Context, collection string, filter validation.Filter) (int64, error) {
	query := bson.M{chainField: filter.ChainID}

	ts := bson.M{}
	if filter.After != nil {
		ts["$gt"] = *filter.After
	}
	if filter.From != nil {
		ts["$gte"] = *filter.From
	}
	if filter.To != nil {
		ts["$lte"] = *filter.To
	}
	if len(ts) > 0 {
		query[timestampField] = ts
	}

	n, err := s.db.Collection(collection).CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("count documents in %s: %w", collection, err)
	}
	return n, nil
}

// EstimatedCount returns the collection's estimated document count, used by
// the ping diagnostics only
func (s *Mongo) EstimatedCount(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("estimate count of %s: %w", collection, err)
	}
	return n, nil
}
