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

package aws

import (
	"sync"
	"time"

	"github.com/blinklabs-io/agora/database/plugin"
)

const defaultTimeoutSeconds = 60

var (
	cmdlineOptions struct {
		url       string
		endpoint  string
		region    string
		timeout   uint64
		pathStyle bool
	}
	cmdlineOptionsMutex sync.RWMutex
)

func init() {
	cmdlineOptions.pathStyle = true
	cmdlineOptions.timeout = defaultTimeoutSeconds
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "s3",
			Description:        "Amazon S3 or S3-compatible object storage for block bodies",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "url",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Bucket location as s3://bucket[/prefix]",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.url),
				},
				{
					Name:         "region",
					Type:         plugin.PluginOptionTypeString,
					Description:  "AWS region (defaults to the SDK environment)",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.region),
				},
				{
					Name:         "endpoint",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Custom endpoint for S3-compatible services",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.endpoint),
				},
				{
					Name:         "path-style",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Use path-style addressing with a custom endpoint",
					DefaultValue: true,
					Dest:         &(cmdlineOptions.pathStyle),
				},
				{
					Name:         "timeout",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Per-operation timeout in seconds",
					DefaultValue: uint64(defaultTimeoutSeconds),
					Dest:         &(cmdlineOptions.timeout),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStoreS3OptionFunc{
		WithURL(cmdlineOptions.url),
		WithRegion(cmdlineOptions.region),
		WithEndpoint(cmdlineOptions.endpoint, cmdlineOptions.pathStyle),
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
