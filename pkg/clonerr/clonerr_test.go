package clonerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlatten_CompoundErrorUnwrapsToLeaves(t *testing.T) {
	root := map[string]any{
		"code":    "DeploymentFailed",
		"message": "At least one resource deployment operation failed.",
		"details": []any{
			map[string]any{
				"code":    "Conflict",
				"message": "outer",
				"details": []any{
					map[string]any{"code": "InsufficientQuota", "message": "quota exceeded", "target": "vm1"},
					map[string]any{"code": "AuthorizationFailed", "message": "no permission"},
				},
			},
		},
	}

	leaves := Flatten(root)
	require.Len(t, leaves, 2)
	require.Equal(t, "InsufficientQuota", leaves[0].Code)
	require.Equal(t, "vm1", leaves[0].Target)
	require.Equal(t, "AuthorizationFailed", leaves[1].Code)
}

func TestFlatten_SimpleErrorIsSingleLeaf(t *testing.T) {
	root := map[string]any{"code": "NotFound", "message": "not found"}
	leaves := Flatten(root)
	require.Len(t, leaves, 1)
	require.Equal(t, "NotFound", leaves[0].Code)
}

func TestWrap_PreservesExistingCloudError(t *testing.T) {
	original := New(AuthFailure, "Forbidden", "denied")
	wrapped := Wrap(TransientCloud, original)
	require.Same(t, original, wrapped)
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(NotFound, "NotFound", "missing")
	require.True(t, Is(err, NotFound))
	require.False(t, Is(err, AuthFailure))
	require.False(t, Is(errors.New("plain"), NotFound))
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]Kind{
		401: AuthFailure,
		403: AuthFailure,
		404: NotFound,
		429: TransientCloud,
		500: TransientCloud,
		503: TransientCloud,
		400: Unknown,
	}
	for status, want := range cases {
		require.Equal(t, want, ClassifyHTTPStatus(status))
	}
}
