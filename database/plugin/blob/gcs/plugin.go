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

package gcs

import (
	"sync"
	"time"

	"github.com/blinklabs-io/agora/database/plugin"
)

var (
	cmdlineOptions struct {
		url             string
		credentialsFile string
		timeout         uint64
	}
	cmdlineOptionsMutex sync.RWMutex
)

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "gcs",
			Description:        "Google Cloud Storage bucket for block bodies",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "url",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Bucket location as gcs://bucket[/prefix]",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.url),
				},
				{
					Name:         "credentials-file",
					Type:         plugin.PluginOptionTypeString,
					CustomEnvVar: "GOOGLE_APPLICATION_CREDENTIALS",
					Description:  "Service account key (defaults to application default credentials)",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.credentialsFile),
				},
				{
					Name:         "timeout",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Per-operation timeout in seconds (0 uses the store default)",
					DefaultValue: uint64(0),
					Dest:         &(cmdlineOptions.timeout),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStoreGCSOptionFunc{
		WithURL(cmdlineOptions.url),
		WithCredentialsFile(cmdlineOptions.credentialsFile),
		WithTimeout(
			time.Duration(cmdlineOptions.timeout) * time.Second, //nolint:gosec // small config value
		),
	}
	cmdlineOptionsMutex.RUnlock()
	p, err := NewWithOptions(opts...)
	if err != nil {
		return plugin.NewErrorPlugin(err)
	}
	return p
}
