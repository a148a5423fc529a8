// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"encoding/json"
	"testing"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_Name(t *testing.T) {
	name := "Aladdin"
	user := &models.User{Email: "a@x.com", DisplayName: &name}
	assert.Equal(t, "Aladdin", user.Name())
}

func TestUser_Name_FallsBackToEmail(t *testing.T) {
	user := &models.User{Email: "a@x.com"}
	assert.Equal(t, "a@x.com", user.Name())

	empty := ""
	user.DisplayName = &empty
	assert.Equal(t, "a@x.com", user.Name())
}

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@x.com", PasswordHash: "$argon2id$secret"}

	data, err := json.Marshal(user)

	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
	assert.Contains(t, string(data), `"email":"a@x.com"`)
}
