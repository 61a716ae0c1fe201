package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPoolConfig_ZeroSizesKeepParsedDefaults(t *testing.T) {
	poolConfig, err := buildPoolConfig(&PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "supportdesk",
		Database: "supportdesk_db",
		SSLMode:  "disable",
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, poolConfig.MaxConns, int32(1))
}

func TestBuildPoolConfig_ExplicitSizesApplied(t *testing.T) {
	poolConfig, err := buildPoolConfig(&PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "supportdesk",
		Database: "supportdesk_db",
		SSLMode:  "disable",
		MaxConns: 25,
		MinConns: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, int32(25), poolConfig.MaxConns)
	assert.Equal(t, int32(5), poolConfig.MinConns)
}
