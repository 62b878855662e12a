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

package mysql

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m, err := NewWithOptions(
		WithAddress("db.local", 3307),
		WithCredentials("agora", "secret"),
		WithDatabase("ledger"),
		WithTLS("skip-verify"),
		WithTimeZone("UTC"),
		WithLogger(logger),
		WithPromRegistry(reg),
	)
	require.NoError(t, err)
	assert.Equal(t, "db.local:3307", m.driverCfg.Addr)
	assert.Equal(t, "agora", m.driverCfg.User)
	assert.Equal(t, "secret", m.driverCfg.Passwd)
	assert.Equal(t, "ledger", m.driverCfg.DBName)
	assert.Equal(t, "skip-verify", m.driverCfg.TLSConfig)
	assert.Equal(t, time.UTC, m.driverCfg.Loc)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, reg, m.promRegistry)
	assert.Equal(t, DefaultMaxConnections, m.maxConnections)
}

func TestNewWithOptionsDefaults(t *testing.T) {
	m, err := NewWithOptions(WithMaxConnections(-1))
	require.NoError(t, err)
	assert.Equal(t, "localhost:3306", m.driverCfg.Addr)
	assert.Equal(t, "root", m.driverCfg.User)
	assert.Equal(t, DefaultDatabase, m.driverCfg.DBName)
	assert.True(t, m.driverCfg.ParseTime)
	assert.Equal(t, DefaultMaxConnections, m.maxConnections)
}

func TestInvalidOptions(t *testing.T) {
	_, err := NewWithOptions(WithTimeZone("Nowhere/Special"))
	assert.ErrorContains(t, err, "invalid time zone")

	_, err = NewWithOptions(WithDSN("not a dsn"))
	assert.ErrorContains(t, err, "invalid DSN")
}

func TestBuildDSN(t *testing.T) {
	m, err := NewWithOptions(
		WithAddress("db.local", 0),
		WithCredentials("agora", "secret"),
		WithDatabase("ledger"),
	)
	require.NoError(t, err)
	dsn, dbName := m.buildDSN()
	assert.Equal(t, "ledger", dbName)
	assert.Contains(t, dsn, "agora:secret@tcp(db.local:3306)/ledger")
	assert.Contains(t, dsn, "parseTime=true")

	m, err = NewWithOptions(
		WithDatabase("ignored"),
		WithDSN("root:pw@tcp(127.0.0.1:3306)/other"),
	)
	require.NoError(t, err)
	dsn, dbName = m.buildDSN()
	assert.Equal(t, "other", dbName)
	assert.Contains(t, dsn, "root:pw@tcp(127.0.0.1:3306)/other")
	assert.Contains(t, dsn, "parseTime=true")
}
