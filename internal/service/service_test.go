package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/JosephRemingston/insightAI/internal/config"
	"github.com/JosephRemingston/insightAI/internal/pkg/secret"
	"github.com/JosephRemingston/insightAI/internal/pkg/token"
	"github.com/JosephRemingston/insightAI/mocks"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    strings.Repeat("a", 32),
		RefreshSecret:   strings.Repeat("r", 32),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "insightai",
	}
}

type deps struct {
	svc      *Service
	storage  *mocks.MockStorage
	sessions *mocks.MockStore
	conns    *mocks.MockConnections
	tokens   *token.Manager
	cipher   *secret.Cipher
}

func newDeps(t *testing.T, opts ...token.Option) deps {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cipher, err := secret.New(bytes.Repeat([]byte{0x11}, secret.KeySize))
	require.NoError(t, err)

	d := deps{
		storage:  mocks.NewMockStorage(ctrl),
		sessions: mocks.NewMockStore(ctrl),
		conns:    mocks.NewMockConnections(ctrl),
		tokens:   token.New(testAuthCfg(), opts...),
		cipher:   cipher,
	}
	d.svc = New(d.storage, d.sessions, d.tokens, d.cipher, d.conns)

	return d
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}
