package registry

import (
	"context"
	"fmt"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// MongoDialer connects to tenant MongoDB deployments.
type MongoDialer struct{}

// Dial connects and pings the primary. The connect deadline comes from ctx
// and also bounds server selection.
func (MongoDialer) Dial(ctx context.Context, uri string) (Conn, error) {
	const op = "registry.MongoDialer.Dial"

	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: parse uri: %w", op, err)
	}

	opts := options.Client().ApplyURI(uri)
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			opts.SetServerSelectionTimeout(d)
		}
	}

	cli, err := mongodriver.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	host := ""
	if len(cs.Hosts) > 0 {
		host = cs.Hosts[0]
	}

	return &mongoConn{client: cli, host: host, database: cs.Database}, nil
}

type mongoConn struct {
	client   *mongodriver.Client
	host     string
	database string
}

func (c *mongoConn) Host() string     { return c.host }
func (c *mongoConn) Database() string { return c.database }

func (c *mongoConn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
