package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"ok", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"empty_header", "", "", false},
		{"lowercase_scheme", "bearer abc", "", false},
		{"uppercase_scheme", "BEARER abc", "", false},
		{"no_space", "Bearerabc", "", false},
		{"two_spaces", "Bearer  abc", " abc", true},
		{"tab_separator", "Bearer\tabc", "", false},
		{"prefix_only", "Bearer ", "", false},
		{"basic_scheme", "Basic dXNlcjpwYXNz", "", false},
		{"leading_space", " Bearer abc", "", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := BearerToken(tc.header)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestPrincipal_RoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := PrincipalFrom(context.Background())
	require.False(t, ok)

	p := models.Principal{ID: uuid.New(), Subject: "a@x.com", DisplayName: "alice", Role: models.RoleMentor}
	ctx := WithPrincipal(context.Background(), p)

	got, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	require.Equal(t, p, got)
}
