package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoTasks    = "tasks"
	mongoCounters = "counters"
)

// taskDocument keeps the numeric task id as the document _id so ids stay
// integers across every store.
type taskDocument struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	IsCompleted bool      `bson:"is_completed"`
	DateCreated time.Time `bson:"date_created"`
	DateUpdated time.Time `bson:"date_updated"`
}

func (d taskDocument) task() Task {
	return Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		IsCompleted: d.IsCompleted,
		DateCreated: d.DateCreated.UTC(),
		DateUpdated: d.DateUpdated.UTC(),
	}
}

type MongoRepo struct {
	client   *mongo.Client
	tasks    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoRepo connects to uri and uses the tasks and counters collections
// of database.
func NewMongoRepo(ctx context.Context, uri, database string) (*MongoRepo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging mongodb: %w", err)
	}

	db := client.Database(database)
	return &MongoRepo{
		client:   client,
		tasks:    db.Collection(mongoTasks),
		counters: db.Collection(mongoCounters),
	}, nil
}

func (r *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoRepo) Ping(ctx context.Context) error { return r.client.Ping(ctx, nil) }

// nextID increments the tasks counter. The counter only grows, so deleted
// ids are never handed out again.
func (r *MongoRepo) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": mongoTasks},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next task id: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoRepo) List(ctx context.Context) ([]Task, error) {
	cursor, err := r.tasks.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	out := make([]Task, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.task())
	}
	return out, nil
}

func (r *MongoRepo) Get(ctx context.Context, id int64) (Task, error) {
	var d taskDocument
	err := r.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return d.task(), nil
}

func (r *MongoRepo) Create(ctx context.Context, t Task) (Task, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return Task{}, err
	}
	d := taskDocument{
		ID:          id,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		DateCreated: t.DateCreated.UTC().Truncate(time.Millisecond),
		DateUpdated: t.DateUpdated.UTC().Truncate(time.Millisecond),
	}
	if _, err := r.tasks.InsertOne(ctx, d); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return d.task(), nil
}

func (r *MongoRepo) Update(ctx context.Context, t Task) error {
	res, err := r.tasks.UpdateOne(ctx, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{
		"title":        t.Title,
		"description":  t.Description,
		"is_completed": t.IsCompleted,
		"date_updated": t.DateUpdated.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
