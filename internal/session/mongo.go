package session

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// DefaultCollection is shared with sessions written by earlier versions of
// the shop, which used the same document shape.
const DefaultCollection = "sessions"

// mongoRecord is one document: {_id, expires, session}.
type mongoRecord struct {
	ID      string    `bson:"_id"`
	Expires time.Time `bson:"expires"`
	Session *Session  `bson:"session"`
}

type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore ensures the TTL index on expires so the server removes
// stale sessions without a sweeper.
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires", Value: 1}},
		Options: options.Index().SetName("expires_ttl").SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "session: ensure ttl index on %s", collection)
	}
	return &MongoStore{coll: coll, now: time.Now}, nil
}

func (m *MongoStore) Load(ctx context.Context, id string) (*Session, error) {
	// the ttl monitor runs once a minute, so filter expired documents here
	filter := bson.M{"_id": id, "expires": bson.M{"$gt": m.now()}}
	var rec mongoRecord
	if err := m.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(err, "session: mongo find")
	}
	if rec.Session == nil {
		return nil, ErrNotFound
	}
	rec.Session.ID = rec.ID
	return rec.Session, nil
}

func (m *MongoStore) Save(ctx context.Context, s *Session) error {
	rec := mongoRecord{ID: s.ID, Expires: s.ExpiresAt, Session: s}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": s.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return xerrors.Wrap(err, "session: mongo upsert")
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return xerrors.Wrap(err, "session: mongo delete")
	}
	return nil
}
