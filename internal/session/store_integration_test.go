package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// exerciseStore runs the Store contract against a live backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	id, _ := NewID()
	in := &Session{ID: id, IsLoggedIn: true, User: &UserRef{ID: "64b7f0c2a1b2c3d4e5f60718"}, ExpiresAt: time.Now().Add(time.Hour)}
	in.AddFlash("error", "Invalid email or password.")
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.ID != id || !out.IsLoggedIn || out.User == nil || out.User.ID != in.User.ID {
		t.Fatalf("loaded %+v", out)
	}
	if got := out.Flashes["error"]; len(got) != 1 || got[0] != "Invalid email or password." {
		t.Fatalf("flashes = %v", out.Flashes)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}

	expired := &Session{ID: id + "-x", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := store.Save(ctx, expired); err != nil {
		t.Fatalf("save expired: %v", err)
	}
	if _, err := store.Load(ctx, expired.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired load: %v", err)
	}
	_ = store.Delete(ctx, expired.ID)
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

	store, err := NewMongoStore(ctx, client.Database("shop_test"), "sessions_test")
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, "test:sess:"))
}
