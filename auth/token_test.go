// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseActor(t *testing.T) {
	secret := "test-secret"
	token, err := SignActor(Actor{ID: "user-1", Role: "Surveyor"}, secret, time.Hour)
	require.NoError(t, err)

	actor, err := ParseActor(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, "Surveyor", actor.Role)

	// Header form is accepted too
	actor, err = ParseActor("Bearer "+token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.ID)
}

func TestParseActorRejects(t *testing.T) {
	secret := "test-secret"

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "Admin",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "u",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	good, err := SignActor(Actor{ID: "u"}, secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"empty", "", secret},
		{"garbage", "not.a.token", secret},
		{"wrong secret", good, "other-secret"},
		{"no secret configured", good, ""},
		{"expired", expired, secret},
		{"missing subject", noSubject, secret},
		{"wrong algorithm", wrongAlg, secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActor(tt.token, tt.secret)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken), "expected ErrInvalidToken, got %v", err)
		})
	}
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: "u1", Role: "QC"})
	actor, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", actor.ID)
	assert.Equal(t, "QC", actor.Role)
}

func TestLoadPermissionConfig(t *testing.T) {
	cfg, err := LoadPermissionConfig()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Roles)

	byName := map[string]RoleConfig{}
	for _, role := range cfg.Roles {
		byName[role.Name] = role
	}

	for _, name := range []string{"Admin", "Surveyor", "Nodal Officer", "Validator", "QC", "Viewer"} {
		_, ok := byName[name]
		assert.True(t, ok, "role %s missing", name)
	}
	assert.Contains(t, byName["Admin"].Permissions, PermManageSubunit)
	assert.Contains(t, byName["Surveyor"].Permissions, PermCreateSurvey)
	assert.NotContains(t, byName["Viewer"].Permissions, PermCreateSurvey)
	assert.Less(t, byName["Admin"].Superiority, byName["Viewer"].Superiority)
}
