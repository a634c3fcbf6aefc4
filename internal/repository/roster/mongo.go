package roster

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voip_chat/internal/model"
)

type (
	// MongoLoader reads roster entries from a collection of {id, username} documents.
	MongoLoader struct {
		collection *mongo.Collection
	}
)

func NewMongoLoader(db *mongo.Database, collection string) *MongoLoader {
	return &MongoLoader{
		collection: db.Collection(collection),
	}
}

func (r *MongoLoader) Load(ctx context.Context) ([]model.RosterEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find roster: %w", err)
	}
	defer cur.Close(ctx)

	var entries []model.RosterEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return entries, nil
}

// GetByID looks up a single entry; a missing entry is (nil, nil).
func (r *MongoLoader) GetByID(ctx context.Context, id string) (*model.RosterEntry, error) {
	var entry model.RosterEntry
	err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert adds or renames an entry. Used by the roster admin command.
func (r *MongoLoader) Upsert(ctx context.Context, entry model.RosterEntry) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"id": entry.ID},
		bson.M{"$set": bson.M{"username": entry.Username}},
		options.Update().SetUpsert(true),
	)
	return err
}

// ConnectMongo dials uri and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}
