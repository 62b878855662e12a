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

package plugin_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/agora/database/plugin"
	_ "github.com/blinklabs-io/agora/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/agora/database/plugin/metadata/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPluginOption(t *testing.T) {
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", ""))
	// Wrong type
	assert.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "data-dir", 123))
	// Unknown options are ignored
	assert.NoError(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "sqlite", "does-not-exist", "x"))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "data-dir", t.TempDir()))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "block-cache-size", uint64(100000000)))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "badger", "gc", true))
	assert.Error(t, plugin.SetPluginOption(plugin.PluginTypeMetadata, "nonexistent", "data-dir", t.TempDir()))
}

type observablePlugin struct {
	mockPlugin
	logger   *slog.Logger
	registry prometheus.Registerer
	started  bool
}

func (o *observablePlugin) SetLogger(logger *slog.Logger)             { o.logger = logger }
func (o *observablePlugin) SetPromRegistry(reg prometheus.Registerer) { o.registry = reg }
func (o *observablePlugin) Start() error {
	o.started = true
	return nil
}

func TestStartPluginInjectsObservability(t *testing.T) {
	instance := &observablePlugin{}
	pluginName := "observable-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return instance },
	})
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, pluginName, logger, reg)
	require.NoError(t, err)
	assert.Same(t, instance, p)
	assert.True(t, instance.started)
	assert.Same(t, logger, instance.logger)
	assert.Equal(t, reg, instance.registry)
}

func TestStartPluginErrors(t *testing.T) {
	_, err := plugin.StartPlugin(plugin.PluginTypeBlob, "missing-plugin", nil, nil)
	assert.Error(t, err)

	pluginName := "broken-" + t.Name()
	startErr := errors.New("bad options")
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return plugin.NewErrorPlugin(startErr) },
	})
	_, err = plugin.StartPlugin(plugin.PluginTypeBlob, pluginName, nil, nil)
	assert.ErrorIs(t, err, startErr)
}
