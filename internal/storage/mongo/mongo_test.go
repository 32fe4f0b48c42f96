package mongo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

const testTimeout = 10 * time.Second

// TestMain starts a single MongoDB container for the package. Each test
// gets its own database (see newTestMongo).
//
// Run locally:
//
//	GO_TEST_INTEGRATION=1 go test ./internal/storage/mongo -v -count=1
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("MONGODB_URI", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func newTestMongo(t *testing.T) *Mongo {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	uri := os.Getenv("MONGODB_URI") + "/" + dbName

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, uri)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func TestDatabaseFromURI(t *testing.T) {
	t.Parallel()

	require.Equal(t, "vault", databaseFromURI("mongodb://localhost:27017/vault"))
	require.Equal(t, "vault", databaseFromURI("mongodb://u:p@localhost:27017/vault?authSource=admin"))
	require.Equal(t, defaultDBName, databaseFromURI("mongodb://localhost:27017"))
	require.Equal(t, defaultDBName, databaseFromURI("mongodb://localhost:27017/"))
	require.Equal(t, defaultDBName, databaseFromURI("::bad::"))
}

func TestNew_EmptyURI(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestUsers_SaveAndFind(t *testing.T) {
	m := newTestMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	u := &models.User{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, m.SaveUser(ctx, u))

	byEmail, err := m.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, u.PasswordHash, byEmail.PasswordHash)
	require.WithinDuration(t, u.CreatedAt, byEmail.CreatedAt, time.Millisecond)

	byID, err := m.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	m := newTestMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	first := &models.User{ID: uuid.New(), Email: "dup@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	require.NoError(t, m.SaveUser(ctx, first))

	second := &models.User{ID: uuid.New(), Email: "dup@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	require.ErrorIs(t, m.SaveUser(ctx, second), storage.ErrAlreadyExists)
}

func TestUsers_NotFound(t *testing.T) {
	m := newTestMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_, err := m.UserByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCredentials_CreateAndOwnership(t *testing.T) {
	m := newTestMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	owner := uuid.New()
	c := &models.Credential{
		ID:         uuid.New(),
		TenantID:   owner,
		Name:       "analytics",
		CipherText: "deadbeef",
		IV:         "00112233445566778899aabbccddeeff",
		AuthTag:    "ffeeddccbbaa99887766554433221100",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, m.CreateCredential(ctx, c))

	got, err := m.CredentialByID(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.CipherText, got.CipherText)
	require.Equal(t, c.IV, got.IV)
	require.Equal(t, c.AuthTag, got.AuthTag)
	require.Equal(t, "analytics", got.Name)
	require.Equal(t, owner, got.TenantID)

	_, err = m.CredentialByID(ctx, uuid.New(), c.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.CredentialByID(ctx, owner, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, m.CreateCredential(ctx, c), storage.ErrAlreadyExists)
}
