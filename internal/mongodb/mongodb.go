// Package mongodb opens the shared client used by the session and user
// stores.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const DefaultConnectTimeout = 10 * time.Second

type Options struct {
	URI      string
	Database string
	// AppName is reported to the server in the handshake.
	AppName        string
	ConnectTimeout time.Duration
}

// Client wraps a connected client and its database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the deployment and pings the primary. The server is not
// usable without the store, so callers treat an error as fatal.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.URI == "" {
		return nil, xerrors.New("mongodb: URI is required")
	}
	if opts.Database == "" {
		return nil, xerrors.New("mongodb: database is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	co := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)
	if opts.AppName != "" {
		co.SetAppName(opts.AppName)
	}
	client, err := mongo.Connect(ctx, co)
	if err != nil {
		return nil, xerrors.Wrap(err, "mongodb: connect")
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, xerrors.Wrap(err, "mongodb: ping")
	}
	return &Client{client: client, db: client.Database(opts.Database)}, nil
}

func (c *Client) Database() *mongo.Database { return c.db }

// Ping satisfies health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
