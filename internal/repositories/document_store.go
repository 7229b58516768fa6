package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
)

// MongoDocumentStore implements engine.DocumentStore on a MongoDB database.
// Writes use the driver's default write concern, so a returned nil error
// means the store acknowledged durability.
type MongoDocumentStore struct {
	db *mongo.Database
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", engine.ErrTransientIO, op, err)
}

// Get retrieves a document by id.
func (s *MongoDocumentStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, engine.ErrNotFound
		}
		return nil, transient("get "+collection, err)
	}
	return doc, nil
}

// Query returns all documents matching filter, sorted by orderBy.
func (s *MongoDocumentStore) Query(ctx context.Context, collection string, filter map[string]any, orderBy string, descending bool) ([]map[string]any, error) {
	match := bson.M{}
	for k, v := range filter {
		match[k] = v
	}
	opts := options.Find()
	if orderBy != "" {
		dir := 1
		if descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: orderBy, Value: dir}})
	}
	cursor, err := s.db.Collection(collection).Find(ctx, match, opts)
	if err != nil {
		return nil, transient("query "+collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, transient("query "+collection, err)
	}
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = doc
	}
	return out, nil
}

// Insert writes a new document. Callers supply "_id"; the few that do not
// get the driver-generated id back as a hex string.
func (s *MongoDocumentStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, bson.M(fields))
	if err != nil {
		return "", transient("insert "+collection, err)
	}
	if id, ok := fields["_id"].(string); ok {
		return id, nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}

// Update applies a partial $set to a document.
func (s *MongoDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return transient("update "+collection, err)
	}
	if res.MatchedCount == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// Delete removes a document by id.
func (s *MongoDocumentStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return transient("delete "+collection, err)
	}
	if res.DeletedCount == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// Watch opens a change stream on the collection. Updates are delivered with
// the full post-image so consumers always see whole documents.
func (s *MongoDocumentStore) Watch(ctx context.Context, collection string, filter map[string]any) (engine.ChangeStream, error) {
	pipeline := mongo.Pipeline{}
	if len(filter) > 0 {
		match := bson.D{}
		for k, v := range filter {
			match = append(match, bson.E{Key: "fullDocument." + k, Value: v})
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, transient("watch "+collection, err)
	}
	return &mongoChangeStream{collection: collection, cs: cs}, nil
}

type mongoChangeStream struct {
	collection string
	cs         *mongo.ChangeStream
}

type changeDocument struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

func (m *mongoChangeStream) Next(ctx context.Context) (engine.ChangeEvent, error) {
	for m.cs.Next(ctx) {
		var doc changeDocument
		if err := m.cs.Decode(&doc); err != nil {
			return engine.ChangeEvent{}, transient("decode change on "+m.collection, err)
		}
		var kind engine.ChangeKind
		switch doc.OperationType {
		case "insert":
			kind = engine.ChangeAdded
		case "update", "replace":
			kind = engine.ChangeModified
		case "delete":
			kind = engine.ChangeRemoved
		default:
			continue
		}
		return engine.ChangeEvent{
			Kind:       kind,
			Collection: m.collection,
			DocumentID: doc.DocumentKey.ID,
			Document:   doc.FullDocument,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return engine.ChangeEvent{}, err
	}
	if err := m.cs.Err(); err != nil {
		return engine.ChangeEvent{}, transient("stream "+m.collection, err)
	}
	return engine.ChangeEvent{}, transient("stream "+m.collection, errors.New("change stream exhausted"))
}

func (m *mongoChangeStream) Close(ctx context.Context) error {
	return m.cs.Close(ctx)
}
