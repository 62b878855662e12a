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
	"testing"

	"github.com/blinklabs-io/agora/database/plugin"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct{}

func (m *mockPlugin) Start() error { return nil }
func (m *mockPlugin) Stop() error  { return nil }

type mockOptions struct {
	name    string
	enabled bool
	workers int
	size    uint64
}

func registerMock(t *testing.T, dest *mockOptions) string {
	pluginName := "mock-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "name",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: "default",
				Dest:         &(dest.name),
			},
			{
				Name: "enabled",
				Type: plugin.PluginOptionTypeBool,
				Dest: &(dest.enabled),
			},
			{
				Name:         "workers",
				Type:         plugin.PluginOptionTypeInt,
				DefaultValue: 2,
				Dest:         &(dest.workers),
			},
			{
				Name:         "cache-size",
				Type:         plugin.PluginOptionTypeUint,
				DefaultValue: uint64(64),
				Dest:         &(dest.size),
			},
		},
	})
	return pluginName
}

func TestRegisterAndGetPlugin(t *testing.T) {
	var opts mockOptions
	pluginName := registerMock(t, &opts)
	assert.NotNil(t, plugin.GetPlugin(plugin.PluginTypeMetadata, pluginName))
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeBlob, pluginName))

	found := false
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		if entry.Name == pluginName {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRegisterReplacesEntry(t *testing.T) {
	pluginName := "replace-" + t.Name()
	for _, desc := range []string{"first", "second"} {
		plugin.Register(plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               pluginName,
			Description:        desc,
			NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		})
	}
	count := 0
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if entry.Name == pluginName {
			count++
			assert.Equal(t, "second", entry.Description)
		}
	}
	assert.Equal(t, 1, count)
}

func TestGetPluginsSorted(t *testing.T) {
	for _, name := range []string{"zz-sort", "aa-sort"} {
		plugin.Register(plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               name,
			NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		})
	}
	entries := plugin.GetPlugins(plugin.PluginTypeBlob)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Name, entries[i].Name)
	}
}

func TestPopulateCmdlineOptions(t *testing.T) {
	var opts mockOptions
	pluginName := registerMock(t, &opts)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	require.NoError(
		t,
		fs.Parse([]string{
			"--metadata-" + pluginName + "-name=flagged",
			"--metadata-" + pluginName + "-cache-size=128",
		}),
	)
	assert.Equal(t, "flagged", opts.name)
	assert.Equal(t, uint64(128), opts.size)
	assert.Equal(t, 2, opts.workers)
}

func TestProcessEnvVars(t *testing.T) {
	var opts mockOptions
	registerMock(t, &opts)
	prefix := "AGORA_METADATA_MOCK_TESTPROCESSENVVARS"
	t.Setenv(prefix+"_ENABLED", "true")
	t.Setenv(prefix+"_WORKERS", "8")
	t.Setenv(prefix+"_CACHE_SIZE", "4096")
	require.NoError(t, plugin.ProcessEnvVars("AGORA"))
	assert.True(t, opts.enabled)
	assert.Equal(t, 8, opts.workers)
	assert.Equal(t, uint64(4096), opts.size)
}

func TestProcessEnvVarsBadValue(t *testing.T) {
	var opts mockOptions
	registerMock(t, &opts)
	t.Setenv("AGORA_METADATA_MOCK_TESTPROCESSENVVARSBADVALUE_WORKERS", "many")
	assert.Error(t, plugin.ProcessEnvVars("AGORA"))
}

func TestProcessConfig(t *testing.T) {
	var opts mockOptions
	pluginName := registerMock(t, &opts)
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {
			pluginName: {
				"name":       "from-config",
				"enabled":    true,
				"workers":    int64(3),
				"cache-size": 256,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-config", opts.name)
	assert.True(t, opts.enabled)
	assert.Equal(t, 3, opts.workers)
	assert.Equal(t, uint64(256), opts.size)
}
