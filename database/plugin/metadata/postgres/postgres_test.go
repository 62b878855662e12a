// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"os"
	"testing"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptionsDefaults(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost", m.host)
	assert.Equal(t, uint(5432), m.port)
	assert.Equal(t, "postgres", m.user)
	assert.Equal(t, "disable", m.sslMode)
	assert.Equal(t, defaultMaxOpenConns, m.pool.maxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, m.pool.maxIdleConns)
	assert.Equal(
		t,
		"host=localhost user=postgres password= dbname=postgres port=5432 sslmode=disable TimeZone=UTC",
		m.buildDSN(),
	)
}

func TestPoolAndSchema(t *testing.T) {
	m, err := NewWithOptions(
		WithSchema("agora"),
		WithPool(4, 8, 0),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, m.pool.maxOpenConns)
	// Idle connections never exceed the open limit
	assert.Equal(t, 4, m.pool.maxIdleConns)
	assert.Equal(t, defaultConnMaxLifetime, m.pool.connMaxLifetime)
	assert.Contains(t, m.buildDSN(), "search_path=agora")
}

func TestBuildDSNOverride(t *testing.T) {
	m, err := NewWithOptions(
		WithHost("db"),
		WithDSN("  host=other dbname=agora  "),
	)
	require.NoError(t, err)
	assert.Equal(t, "host=other dbname=agora", m.buildDSN())
}

// TestPostgresIntegration runs against a live server when POSTGRES_DSN is set
func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	m, err := NewWithOptions(
		WithDSN(dsn),
		WithPromRegistry(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()
	for _, model := range models.MigrateModels {
		assert.True(t, m.DB().Migrator().HasTable(model))
	}
	txn := m.Transaction()
	require.NoError(t, m.SetCommitTimestamp(txn, 42))
	require.NoError(t, txn.Commit().Error)
	ts, err := m.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
}
