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

package sqlite

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
		WithDataDir("/tmp/test"),
		WithLogger(logger),
		WithPromRegistry(reg),
		WithMaxConnections(10),
		WithBusyTimeout(time.Second),
		WithVacuumInterval(0),
	)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test", m.dataDir)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, reg, m.promRegistry)
	assert.Equal(t, 10, m.maxConnections)
	assert.Equal(t, time.Second, m.busyTimeout)
	assert.Zero(t, m.vacuumInterval)
	assert.Contains(t, m.fileDSN(), "busy_timeout(1000)")
	assert.Contains(t, m.fileDSN(), "/tmp/test/metadata.sqlite")
}

func TestDefaults(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultBusyTimeout, m.busyTimeout)
	assert.Equal(t, DefaultVacuumInterval, m.vacuumInterval)
	assert.Zero(t, m.maxConnections)
}

func TestNegativeDuration(t *testing.T) {
	_, err := NewWithOptions(WithVacuumInterval(-time.Hour))
	assert.Error(t, err)
}

func TestVacuumDisabledInMemory(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Close()
	m.timerMutex.Lock()
	assert.Nil(t, m.timerVacuum)
	m.timerMutex.Unlock()
}
