// Package mongo - хранилище заметок в MongoDB.
// Истёкшие документы удаляет TTL-индекс по expiresAt; до его срабатывания они
// отфильтровываются при чтении.
package mongo

import (
	"FadNote/internal/repo"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultDatabase   = "fadnote"
	DefaultCollection = "notes"

	connectTimeout = 10 * time.Second
)

type document struct {
	ID        string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// Repository - коллекция заметок, _id документа совпадает с id заметки.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var (
	_ repo.NoteRepository = (*Repository)(nil)
	_ repo.Taker          = (*Repository)(nil)
	_ repo.Remote         = (*Repository)(nil)
)

// Open подключается к MongoDB, проверяет соединение и создаёт TTL-индекс.
func Open(ctx context.Context, uri, dbName, collName string) (*Repository, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if dbName == "" {
		dbName = DefaultDatabase
	}
	if collName == "" {
		collName = DefaultCollection
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := cli.Ping(pctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}

	r := &Repository{client: cli, coll: cli.Database(dbName).Collection(collName), now: time.Now}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create ttl index: %w", err)
	}
	return nil
}

func (r *Repository) Name() string { return "mongo" }

func (r *Repository) Remote() bool { return true }

// live - фильтр по id только для непросроченного документа.
func (r *Repository) live(id string) bson.M {
	return bson.M{"_id": id, "expiresAt": bson.M{"$gt": r.now()}}
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, r.live(id), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Set вставляет документ; уникальность _id обеспечивает сама MongoDB.
// Просроченный документ с тем же id, ещё не удалённый TTL-монитором, удаляется заранее.
func (r *Repository) Set(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	now := r.now()
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "expiresAt": bson.M{"$lte": now}}); err != nil {
		return err
	}
	_, err := r.coll.InsertOne(ctx, document{
		ID:        id,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: repo.ExpiresAt(now, ttl),
	})
	if mongo.IsDuplicateKeyError(err) {
		return repo.ErrAlreadyExists
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) ([]byte, error) {
	var doc document
	err := r.coll.FindOne(ctx, r.live(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

// Take - FindOneAndDelete: документ получает только один из конкурирующих запросов.
func (r *Repository) Take(ctx context.Context, id string) ([]byte, error) {
	var doc document
	err := r.coll.FindOneAndDelete(ctx, r.live(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}
