package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/pkg/token"
	"github.com/JosephRemingston/insightAI/internal/session"
	"github.com/JosephRemingston/insightAI/internal/session/memory"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

func TestSignup_OK(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	ctx := context.Background()

	d.storage.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(nil, storage.ErrNotFound)

	var saved *models.User
	d.storage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		})

	// Short passwords are accepted: there is no strength policy.
	u, err := d.svc.Signup(ctx, "  User@Example.com ", "pw123")
	require.NoError(t, err)
	require.Same(t, saved, u)
	require.Equal(t, "user@example.com", u.Email)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.NotEqual(t, "pw123", u.PasswordHash)
	require.True(t, checkPassword(u.PasswordHash, "pw123"))
	require.False(t, u.CreatedAt.IsZero())
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "", "pw", ErrInvalidEmail},
		{"no at sign", "not-an-email", "pw", ErrInvalidEmail},
		{"display name form", "Bob <bob@example.com>", "pw", ErrInvalidEmail},
		{"empty password", "bob@example.com", "", ErrEmptyPassword},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps(t)
			_, err := d.svc.Signup(context.Background(), tc.email, tc.password)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSignup_PasswordTooLong(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

	_, err := d.svc.Signup(context.Background(), "long@example.com", strings.Repeat("p", 73))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSignup_EmailTaken(t *testing.T) {
	t.Parallel()

	t.Run("found on lookup", func(t *testing.T) {
		d := newDeps(t)
		d.storage.EXPECT().UserByEmail(gomock.Any(), "taken@example.com").
			Return(&models.User{ID: uuid.New(), Email: "taken@example.com"}, nil)

		_, err := d.svc.Signup(context.Background(), "taken@example.com", "pw")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("lost the insert race", func(t *testing.T) {
		d := newDeps(t)
		d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
		d.storage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("storage.mongo.SaveUser: %w", storage.ErrAlreadyExists))

		_, err := d.svc.Signup(context.Background(), "taken@example.com", "pw")
		require.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestSignup_StorageError(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	boom := errors.New("db down")
	d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := d.svc.Signup(context.Background(), "a@example.com", "pw")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_OK(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, "pw123")}
	tid := user.ID.String()

	d.storage.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)

	var storedRefresh, storedAccess string
	gomock.InOrder(
		d.sessions.EXPECT().Put(gomock.Any(), session.RefreshKey(tid), gomock.Any(), 7*24*time.Hour).
			DoAndReturn(func(_ context.Context, _, v string, _ time.Duration) error {
				storedRefresh = v
				return nil
			}),
		d.sessions.EXPECT().Put(gomock.Any(), session.LastTokenKey(tid), gomock.Any(), 15*time.Minute).
			DoAndReturn(func(_ context.Context, _, v string, _ time.Duration) error {
				storedAccess = v
				return nil
			}),
	)

	got, pair, err := d.svc.Login(ctx, "USER@example.com", "pw123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, storedRefresh, pair.RefreshToken)
	require.Equal(t, storedAccess, pair.AccessToken)

	id, ok := d.tokens.VerifyAccess(pair.AccessToken)
	require.True(t, ok)
	require.Equal(t, user.ID, id)

	id, ok = d.tokens.VerifyRefresh(pair.RefreshToken)
	require.True(t, ok)
	require.Equal(t, user.ID, id)

	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	t.Run("unknown email", func(t *testing.T) {
		d := newDeps(t)
		d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

		_, _, err := d.svc.Login(context.Background(), gofakeit.Email(), "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		d := newDeps(t)
		user := &models.User{ID: uuid.New(), Email: "u@example.com", PasswordHash: mustHashPW(t, "right")}
		d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(user, nil)

		_, _, err := d.svc.Login(context.Background(), "u@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("malformed email or empty password", func(t *testing.T) {
		d := newDeps(t)

		_, _, err := d.svc.Login(context.Background(), "nope", "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = d.svc.Login(context.Background(), "u@example.com", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	user := &models.User{ID: uuid.New(), Email: "u@example.com", PasswordHash: mustHashPW(t, "pw")}
	boom := errors.New("redis unavailable")

	d.storage.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
	d.sessions.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	_, pair, err := d.svc.Login(context.Background(), "u@example.com", "pw")
	require.ErrorIs(t, err, boom)
	require.Nil(t, pair, "no token is handed out unless it was stored")
}

func TestRefresh_OK(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	tenant := uuid.New()
	refresh, _, err := d.tokens.IssueRefresh(tenant)
	require.NoError(t, err)

	d.sessions.EXPECT().Get(gomock.Any(), session.RefreshKey(tenant.String())).Return(refresh, nil)
	d.sessions.EXPECT().Put(gomock.Any(), session.LastTokenKey(tenant.String()), gomock.Any(), 15*time.Minute).Return(nil)

	access, exp, err := d.svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	require.False(t, exp.IsZero())

	id, ok := d.tokens.VerifyAccess(access)
	require.True(t, ok)
	require.Equal(t, tenant, id)
}

func TestRefresh_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("forged token never reaches the store", func(t *testing.T) {
		d := newDeps(t)
		_, _, err := d.svc.Refresh(context.Background(), "not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		d := newDeps(t)
		access, _, err := d.tokens.IssueAccess(uuid.New())
		require.NoError(t, err)

		_, _, err = d.svc.Refresh(context.Background(), access)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("nothing stored", func(t *testing.T) {
		d := newDeps(t)
		refresh, _, err := d.tokens.IssueRefresh(uuid.New())
		require.NoError(t, err)
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", session.ErrNotFound)

		_, _, err = d.svc.Refresh(context.Background(), refresh)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("superseded", func(t *testing.T) {
		d := newDeps(t)
		tenant := uuid.New()
		old, _, err := d.tokens.IssueRefresh(tenant)
		require.NoError(t, err)
		current, _, err := d.tokens.IssueRefresh(tenant)
		require.NoError(t, err)
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)

		_, _, err = d.svc.Refresh(context.Background(), old)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("store failure", func(t *testing.T) {
		d := newDeps(t)
		refresh, _, err := d.tokens.IssueRefresh(uuid.New())
		require.NoError(t, err)
		boom := errors.New("timeout")
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", boom)

		_, _, err = d.svc.Refresh(context.Background(), refresh)
		require.ErrorIs(t, err, boom)
	})
}

// TestRefresh_ReplayAfterSecondLogin: login twice, the first refresh token
// stops working and the second one keeps working.
func TestRefresh_ReplayAfterSecondLogin(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	user := &models.User{ID: uuid.New(), Email: "r@example.com", PasswordHash: mustHashPW(t, "pw")}
	d.storage.EXPECT().UserByEmail(gomock.Any(), "r@example.com").Return(user, nil).Times(2)

	sessions := memory.New()
	t.Cleanup(func() { _ = sessions.Close() })

	svc := New(d.storage, sessions, d.tokens, d.cipher, d.conns)
	ctx := context.Background()

	_, first, err := svc.Login(ctx, "r@example.com", "pw")
	require.NoError(t, err)
	_, second, err := svc.Login(ctx, "r@example.com", "pw")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, _, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	access, _, err := svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	last, err := sessions.Get(ctx, session.LastTokenKey(user.ID.String()))
	require.NoError(t, err)
	require.Equal(t, access, last)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	tenant := uuid.New()
	access, _, err := d.tokens.IssueAccess(tenant)
	require.NoError(t, err)

	gomock.InOrder(
		d.sessions.EXPECT().Put(gomock.Any(), session.BlacklistKey(access), "1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, ttl time.Duration) error {
				require.Greater(t, ttl, time.Duration(0))
				require.LessOrEqual(t, ttl, 15*time.Minute)
				return nil
			}),
		d.sessions.EXPECT().Delete(gomock.Any(), session.RefreshKey(tenant.String())).Return(nil),
		d.sessions.EXPECT().Delete(gomock.Any(), session.LastTokenKey(tenant.String())).Return(nil),
	)

	require.NoError(t, d.svc.Logout(context.Background(), tenant, access))
}

func TestLogout_BlacklistFailureStops(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	tenant := uuid.New()
	access, _, err := d.tokens.IssueAccess(tenant)
	require.NoError(t, err)
	boom := errors.New("redis down")

	d.sessions.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	require.ErrorIs(t, d.svc.Logout(context.Background(), tenant, access), boom)
}

func TestRevokeAccess_ExpiredTokenIsNoop(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	d := newDeps(t, token.WithClock(clock))

	access, _, err := d.tokens.IssueAccess(uuid.New())
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)

	// no session expectation: nothing must be written.
	require.NoError(t, d.svc.RevokeAccess(context.Background(), access))
	require.NoError(t, d.svc.RevokeAccess(context.Background(), "garbage"))
}

func TestAuthenticate_OK(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	user := &models.User{ID: uuid.New(), Email: "a@example.com"}
	access, _, err := d.tokens.IssueAccess(user.ID)
	require.NoError(t, err)

	gomock.InOrder(
		d.sessions.EXPECT().Get(gomock.Any(), session.BlacklistKey(access)).Return("", session.ErrNotFound),
		d.storage.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil),
	)

	got, err := d.svc.Authenticate(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

// TestAuthenticate_BlacklistPrecedence: a blacklisted token with a valid
// signature is rejected without touching the user store.
func TestAuthenticate_BlacklistPrecedence(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	access, _, err := d.tokens.IssueAccess(uuid.New())
	require.NoError(t, err)

	_, ok := d.tokens.VerifyAccess(access)
	require.True(t, ok)

	d.sessions.EXPECT().Get(gomock.Any(), session.BlacklistKey(access)).Return("1", nil)

	_, err = d.svc.Authenticate(context.Background(), access)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestAuthenticate_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		d := newDeps(t)
		_, err := d.svc.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("forged", func(t *testing.T) {
		d := newDeps(t)
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", session.ErrNotFound)
		_, err := d.svc.Authenticate(context.Background(), "forged.token.value")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("user deleted", func(t *testing.T) {
		d := newDeps(t)
		tenant := uuid.New()
		access, _, err := d.tokens.IssueAccess(tenant)
		require.NoError(t, err)
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", session.ErrNotFound)
		d.storage.EXPECT().UserByID(gomock.Any(), tenant).Return(nil, storage.ErrNotFound)

		_, err = d.svc.Authenticate(context.Background(), access)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("session store failure fails closed", func(t *testing.T) {
		d := newDeps(t)
		access, _, err := d.tokens.IssueAccess(uuid.New())
		require.NoError(t, err)
		boom := errors.New("redis down")
		d.sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", boom)

		_, err = d.svc.Authenticate(context.Background(), access)
		require.ErrorIs(t, err, boom)
	})
}
