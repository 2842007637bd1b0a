package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config describes the document store holding products, conversations and summaries.
type Config struct {
	URI            string `split_words:"true" required:"true"`
	Database       string `split_words:"true" default:"products"`
	ConnectTimeout int    `split_words:"true" default:"10"`
}

// New connects, pings the primary and returns the client with its database handle.
func (c *Config) New(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	timeout := time.Duration(c.ConnectTimeout) * time.Second

	opts := options.Client().ApplyURI(c.URI)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout)
		opts.SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	return client, client.Database(c.Database), nil
}
