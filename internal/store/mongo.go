package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielTwine/smartshare/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements ShareStore on a MongoDB collection. Single-record
// atomicity comes from MongoDB's per-document update guarantees, so no
// process-local locking is needed.
type MongoStore struct {
	files *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{files: db.Collection("files")}
}

func (s *MongoStore) Create(ctx context.Context, file *models.File) error {
	_, err := s.files.InsertOne(ctx, file)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert share record: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	err := s.files.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find share record: %w", err)
	}
	return &file, nil
}

func (s *MongoStore) ListByOwner(ctx context.Context, owner string) ([]models.File, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.files.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list share records: %w", err)
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode share records: %w", err)
	}
	return files, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, upd RecordUpdate) (*models.File, error) {
	set := bson.M{}
	if upd.Active != nil {
		set["active"] = *upd.Active
	}
	if upd.PasswordHash != nil {
		set["password_hash"] = *upd.PasswordHash
		set["password_protected"] = true
	}
	if upd.MaxDownloads != nil {
		set["max_downloads"] = *upd.MaxDownloads
	}
	if upd.ExpiresAt != nil {
		set["expires_at"] = *upd.ExpiresAt
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var file models.File
	err := s.files.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update share record: %w", err)
	}
	return &file, nil
}

// TryConsume issues a single conditional update: increment download_count
// only while the record still has quota (or has no quota at all). The filter
// and increment execute atomically on one document, so concurrent downloads
// can never over-consume.
func (s *MongoStore) TryConsume(ctx context.Context, id string) (ConsumeResult, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"max_downloads": bson.M{"$exists": false}},
			bson.M{"max_downloads": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$download_count", "$max_downloads"}}},
		},
	}
	update := bson.M{"$inc": bson.M{"download_count": 1}}

	err := s.files.FindOneAndUpdate(ctx, filter, update).Err()
	if err == nil {
		return ConsumeGranted, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("consume download slot: %w", err)
	}

	// No document matched: either the record is gone or its quota is spent.
	count, err := s.files.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("consume download slot: %w", err)
	}
	if count == 0 {
		return ConsumeNotFound, nil
	}
	return ConsumeExhausted, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.files.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete share record: %w", err)
	}
	return nil
}

func (s *MongoStore) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	cursor, err := s.files.Find(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, fmt.Errorf("list expired share records: %w", err)
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode expired share records: %w", err)
	}
	return files, nil
}
