package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

type credentialDoc struct {
	ID         string    `bson:"_id"`
	TenantID   string    `bson:"tenant_id"`
	Name       string    `bson:"name"`
	CipherText string    `bson:"cipher_text"`
	IV         string    `bson:"iv"`
	AuthTag    string    `bson:"auth_tag"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d credentialDoc) toModel() (*models.Credential, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}

	tenantID, err := uuid.Parse(d.TenantID)
	if err != nil {
		return nil, err
	}

	return &models.Credential{
		ID:         id,
		TenantID:   tenantID,
		Name:       d.Name,
		CipherText: d.CipherText,
		IV:         d.IV,
		AuthTag:    d.AuthTag,
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

// CreateCredential inserts an encrypted connection record.
func (m *Mongo) CreateCredential(ctx context.Context, cred *models.Credential) error {
	const op = "storage.mongo.CreateCredential"

	doc := credentialDoc{
		ID:         cred.ID.String(),
		TenantID:   cred.TenantID.String(),
		Name:       cred.Name,
		CipherText: cred.CipherText,
		IV:         cred.IV,
		AuthTag:    cred.AuthTag,
		CreatedAt:  cred.CreatedAt.UTC().Truncate(time.Millisecond),
	}

	if _, err := m.credentials.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CredentialByID matches on both id and owner.
func (m *Mongo) CredentialByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Credential, error) {
	const op = "storage.mongo.CredentialByID"

	filter := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "tenant_id", Value: tenantID.String()},
	}

	var doc credentialDoc
	if err := m.credentials.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cred, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	return cred, nil
}
