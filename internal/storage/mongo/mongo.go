package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JosephRemingston/insightAI/internal/storage"
)

const (
	usersCollection       = "users"
	credentialsCollection = "connections"
	defaultDBName         = "insightai"
)

// Mongo: thin adapter over the MongoDB client and its collections.
type Mongo struct {
	client      *mongodriver.Client
	db          *mongodriver.Database
	users       *mongodriver.Collection
	credentials *mongodriver.Collection
}

// New connects to MongoDB, pings the primary, prepares collections and ensures indexes.
func New(ctx context.Context, uri string) (*Mongo, error) {
	const op = "storage.mongo.New"

	if uri == "" {
		return nil, fmt.Errorf("%s: empty uri", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := cli.Database(databaseFromURI(uri))

	m := &Mongo{
		client:      cli,
		db:          db,
		users:       db.Collection(usersCollection),
		credentials: db.Collection(credentialsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes creates:
//   - users: unique email;
//   - connections: tenant_id + created_at(desc) for per-tenant listing.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_email").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure users indexes: %w", err)
	}

	_, err = m.credentials.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("tenant_created_desc"),
	})
	if err != nil {
		return fmt.Errorf("ensure connections indexes: %w", err)
	}

	return nil
}

// databaseFromURI extracts the database name from the URI path,
// falling back to a default when absent.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

var _ storage.Storage = (*Mongo)(nil)
