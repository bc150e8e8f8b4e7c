package repositories

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nanodrive/models"
)

type nodeDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.Node `bson:",inline"`
}

func (d nodeDocument) toModel() models.Node {
	node := d.Node
	node.ID = d.ID.Hex()
	return node
}

type MongoNodeRepository struct {
	folderCollection *mongo.Collection
	fileCollection   *mongo.Collection
}

func NewMongoNodeRepository(db *mongo.Database) *MongoNodeRepository {
	return &MongoNodeRepository{
		folderCollection: db.Collection("folders"),
		fileCollection:   db.Collection("files"),
	}
}

// EnsureIndexes creates the (owner_id, path) index every listing filters on.
func (r *MongoNodeRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "path", Value: 1}}}
	for _, coll := range []*mongo.Collection{r.folderCollection, r.fileCollection} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (r *MongoNodeRepository) collection(kind models.NodeKind) (*mongo.Collection, error) {
	switch kind {
	case models.KindFolder:
		return r.folderCollection, nil
	case models.KindFile:
		return r.fileCollection, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

func (r *MongoNodeRepository) Query(ctx context.Context, ownerID string, kind models.NodeKind, path string) ([]models.Node, error) {
	return r.find(ctx, kind, bson.M{"owner_id": ownerID, "path": path})
}

func (r *MongoNodeRepository) QueryTree(ctx context.Context, ownerID string, kind models.NodeKind, dir string) ([]models.Node, error) {
	filter := bson.M{"owner_id": ownerID}
	if dir != models.RootPath {
		filter["$or"] = []bson.M{
			{"path": dir},
			{"path": bson.M{"$regex": "^" + regexp.QuoteMeta(dir+"/")}},
		}
	}
	return r.find(ctx, kind, filter)
}

func (r *MongoNodeRepository) find(ctx context.Context, kind models.NodeKind, filter bson.M) ([]models.Node, error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []nodeDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}

	nodes := make([]models.Node, 0, len(docs))
	for _, doc := range docs {
		nodes = append(nodes, doc.toModel())
	}
	return nodes, nil
}

func (r *MongoNodeRepository) Get(ctx context.Context, ownerID string, kind models.NodeKind, id string) (*models.Node, error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(string(kind), id)
	}

	var doc nodeDocument
	err = coll.FindOne(ctx, bson.M{"_id": objID, "owner_id": ownerID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(string(kind), id)
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	node := doc.toModel()
	return &node, nil
}

// Insert upserts on a fresh ObjectID so the server clock stamps last_modified
// through $currentDate, then reads the stamped document back.
func (r *MongoNodeRepository) Insert(ctx context.Context, node *models.Node) (string, error) {
	coll, err := r.collection(node.Kind)
	if err != nil {
		return "", err
	}

	fields := bson.M{
		"type":     node.Kind,
		"name":     node.Name,
		"path":     node.Path,
		"owner_id": node.OwnerID,
	}
	if node.IsFile() {
		fields["size"] = node.Size
		fields["mime_type"] = node.MimeType
		fields["blob_location"] = node.BlobLocation
		fields["download_url"] = node.DownloadURL
	}

	id := primitive.NewObjectID()
	update := bson.M{
		"$setOnInsert": fields,
		"$currentDate": bson.M{"last_modified": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved nodeDocument
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&saved); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", coll.Name(), err)
	}

	*node = saved.toModel()
	return node.ID, nil
}

func (r *MongoNodeRepository) Update(ctx context.Context, ownerID string, kind models.NodeKind, id string, update NodeUpdate) error {
	coll, err := r.collection(kind)
	if err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(string(kind), id)
	}

	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Path != nil {
		set["path"] = *update.Path
	}
	change := bson.M{"$currentDate": bson.M{"last_modified": true}}
	if len(set) > 0 {
		change["$set"] = set
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": objID, "owner_id": ownerID}, change)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", coll.Name(), err)
	}
	if result.MatchedCount == 0 {
		return notFound(string(kind), id)
	}
	return nil
}

func (r *MongoNodeRepository) Delete(ctx context.Context, ownerID string, kind models.NodeKind, id string) error {
	coll, err := r.collection(kind)
	if err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(string(kind), id)
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": objID, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
	}
	if result.DeletedCount == 0 {
		return notFound(string(kind), id)
	}
	return nil
}
