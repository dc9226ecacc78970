package user

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "correct horse" || !strings.HasPrefix(hash, "$2a$12$") {
		t.Fatalf("hash %q", hash)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("matching password rejected")
	}
	if CheckPassword(hash, "wrong horse") || CheckPassword("not-a-hash", "correct horse") {
		t.Fatal("mismatch accepted")
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long password err = %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("got %q", got)
	}
}

// exerciseStore runs the Store contract.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	email := "shopper-" + primitive.NewObjectID().Hex() + "@example.com"

	u := &User{Email: strings.ToUpper(email), PasswordHash: "$2a$12$x"}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !primitive.IsValidObjectID(u.ID) || u.Email != email || u.CreatedAt.IsZero() {
		t.Fatalf("created %+v", u)
	}

	byID, err := s.FindByID(ctx, u.ID)
	if err != nil || byID.Email != email || byID.PasswordHash != "$2a$12$x" {
		t.Fatalf("by id %+v err %v", byID, err)
	}
	byEmail, err := s.FindByEmail(ctx, " "+email)
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("by email %+v err %v", byEmail, err)
	}

	if err := s.Create(ctx, &User{Email: email}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}

	for _, id := range []string{primitive.NewObjectID().Hex(), "not-an-object-id", ""} {
		if _, err := s.FindByID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindByID(%q) err = %v", id, err)
		}
	}
	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown email err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	u := &User{Email: "a@b.c", Cart: []CartItem{{ProductID: "p1", Quantity: 1}}}
	_ = m.Create(ctx, u)
	u.Cart[0].Quantity = 9

	got, _ := m.FindByID(ctx, u.ID)
	if got.Cart[0].Quantity != 1 {
		t.Fatal("store shares cart with caller")
	}

	m.Delete(u.ID)
	if _, err := m.FindByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}
	if _, err := m.FindByEmail(ctx, "a@b.c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("email index kept: %v", err)
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SHOP_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SHOP_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	s, err := NewMongoStore(ctx, client.Database("shop_test"), "users_test")
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
}
