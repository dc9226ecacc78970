package user

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const DefaultCollection = "users"

type cartItemDoc struct {
	ProductID primitive.ObjectID `bson:"productId"`
	Quantity  int                `bson:"quantity"`
}

type cartDoc struct {
	Items []cartItemDoc `bson:"items"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Cart      cartDoc            `bson:"cart"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *userDoc) toUser() *User {
	u := &User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
	}
	for _, it := range d.Cart.Items {
		u.Cart = append(u.Cart, CartItem{ProductID: it.ProductID.Hex(), Quantity: it.Quantity})
	}
	return u
}

type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore ensures a unique index on email.
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "user: ensure email index on %s", collection)
	}
	return &MongoStore{coll: coll}, nil
}

func (m *MongoStore) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *MongoStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return m.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var d userDoc
	if err := m.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(err, "user: mongo find")
	}
	return d.toUser(), nil
}

// Create inserts u and assigns u.ID and u.CreatedAt.
func (m *MongoStore) Create(ctx context.Context, u *User) error {
	d := userDoc{
		ID:        primitive.NewObjectID(),
		Email:     NormalizeEmail(u.Email),
		Password:  u.PasswordHash,
		Cart:      cartDoc{Items: []cartItemDoc{}},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := m.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return xerrors.Wrap(err, "user: mongo insert")
	}
	u.ID = d.ID.Hex()
	u.Email = d.Email
	u.CreatedAt = d.CreatedAt
	return nil
}
