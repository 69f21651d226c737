package repository

import (
	"context"
	"time"

	"opmelink-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBSyncRunRepository implements SyncRunRepository for MongoDB.
type MongoDBSyncRunRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBSyncRunRepository connects and ensures the started_at index.
func NewMongoDBSyncRunRepository(uri, dbName, collectionName string) (*MongoDBSyncRunRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	collection := client.Database(dbName).Collection(collectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	if err != nil {
		return nil, err
	}

	return &MongoDBSyncRunRepository{
		client:     client,
		collection: collection,
	}, nil
}

// InsertSyncRun stores a finished run.
func (r *MongoDBSyncRunRepository) InsertSyncRun(ctx context.Context, run *model.SyncRun) error {
	_, err := r.collection.InsertOne(ctx, run)
	return model.Persistence("insert sync run", err)
}

// ListSyncRuns returns the latest runs, newest first.
func (r *MongoDBSyncRunRepository) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "started_at", Value: -1}})
	findOptions.SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, model.Persistence("list sync runs", err)
	}
	defer cursor.Close(ctx)

	var runs []model.SyncRun
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, model.Persistence("decode sync runs", err)
	}

	// Ensure not nil slice for JSON
	if runs == nil {
		runs = []model.SyncRun{}
	}
	return runs, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBSyncRunRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBSyncRunRepository implements SyncRunRepository
var _ SyncRunRepository = (*MongoDBSyncRunRepository)(nil)
