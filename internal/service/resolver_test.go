package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestFindBySubject(t *testing.T) {
	t.Parallel()

	svc, st, _ := newMemSvc(t, testCfg())
	u := st.seed(t, testEmail, "alice", testPW, models.RoleIncumbent)

	p, err := svc.Resolver().FindBySubject(context.Background(), testEmail)
	require.NoError(t, err)
	require.Equal(t, models.Principal{ID: u.ID, Subject: testEmail, DisplayName: "alice", Role: models.RoleIncumbent}, p)

	_, err = svc.Resolver().FindBySubject(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, ErrUnknownPrincipal)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	svc, st, clk := newMemSvc(t, testCfg())
	u := st.seed(t, testEmail, "alice", testPW, models.RoleIncumbent)
	ctx := context.Background()

	sess, err := svc.Login(ctx, testEmail, testPW)
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, models.PrincipalFromUser(u), p)

	// refresh-токен не годится как bearer.
	_, err = svc.Authenticate(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, ErrMalformedToken)

	_, err = svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, ErrMalformedToken)

	clk.Advance(testCfg().AccessTokenTTL)
	_, err = svc.Authenticate(ctx, sess.AccessToken)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newSvcWithMocks(t)

	at, _, err := svc.codec.IssueAccess(testEmail, models.RoleMentor.Key(), time.Minute)
	require.NoError(t, err)

	boom := errors.New("db down")
	users.EXPECT().UserByEmail(gomock.Any(), testEmail).Return(nil, boom)

	_, err = svc.Authenticate(context.Background(), at)
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, ErrUnauthenticated))

	users.EXPECT().UserByEmail(gomock.Any(), testEmail).Return(nil, storage.ErrNotFound)
	_, err = svc.Authenticate(context.Background(), at)
	require.ErrorIs(t, err, ErrUnknownPrincipal)
}
