package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nanodrive/models"
)

type recordDocument struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty"`
	models.TransformRecord `bson:",inline"`
}

func (d recordDocument) toModel() models.TransformRecord {
	record := d.TransformRecord
	record.ID = d.ID.Hex()
	return record
}

type MongoRecordRepository struct {
	collection *mongo.Collection
}

func NewMongoRecordRepository(db *mongo.Database) *MongoRecordRepository {
	return &MongoRecordRepository{collection: db.Collection("transform_records")}
}

func (r *MongoRecordRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}}
	if _, err := r.collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create index on transform_records: %w", err)
	}
	return nil
}

func (r *MongoRecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.TransformRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transform records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []recordDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode transform records: %w", err)
	}

	records := make([]models.TransformRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.toModel())
	}
	return records, nil
}

func (r *MongoRecordRepository) Get(ctx context.Context, ownerID, id string) (*models.TransformRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound("transform record", id)
	}

	var doc recordDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objID, "owner_id": ownerID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFound("transform record", id)
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	record := doc.toModel()
	return &record, nil
}

func (r *MongoRecordRepository) Insert(ctx context.Context, record *models.TransformRecord) (string, error) {
	fields := bson.M{
		"owner_id":                  record.OwnerID,
		"original_blob_location":    record.OriginalBlobLocation,
		"transformed_blob_location": record.TransformedBlobLocation,
		"original_download_url":     record.OriginalDownloadURL,
		"transformed_download_url":  record.TransformedDownloadURL,
		"original_file_name":        record.OriginalFileName,
		"prompt":                    record.Prompt,
		"mode":                      record.Mode,
	}
	update := bson.M{
		"$setOnInsert": fields,
		"$currentDate": bson.M{"created_at": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved recordDocument
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": primitive.NewObjectID()}, update, opts).Decode(&saved); err != nil {
		return "", fmt.Errorf("failed to insert transform record: %w", err)
	}

	*record = saved.toModel()
	return record.ID, nil
}

func (r *MongoRecordRepository) Delete(ctx context.Context, ownerID, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound("transform record", id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete transform record: %w", err)
	}
	if result.DeletedCount == 0 {
		return notFound("transform record", id)
	}
	return nil
}
