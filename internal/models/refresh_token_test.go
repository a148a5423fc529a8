// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		token    models.RefreshToken
		expected bool
	}{
		{"active", models.RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", models.RefreshToken{ExpiresAt: now.Add(-time.Hour)}, false},
		{"expires exactly now", models.RefreshToken{ExpiresAt: now}, false},
		{"revoked", models.RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.token.IsActive(now))
		})
	}
}

func TestRefreshToken_IsRotated(t *testing.T) {
	next := "rt-2"
	assert.False(t, (&models.RefreshToken{}).IsRotated())
	assert.True(t, (&models.RefreshToken{Revoked: true, ReplacedBy: &next}).IsRotated())
}
