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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	Name         string
	Type         PluginOptionType
	CustomEnvVar string
	CustomFlag   string
	Description  string
	DefaultValue any
	Dest         any
}

func (p *PluginOption) flagName(pluginType string, pluginName string) string {
	if p.CustomFlag != "" {
		return p.CustomFlag
	}
	return fmt.Sprintf("%s-%s-%s", pluginType, pluginName, p.Name)
}

func (p *PluginOption) envVarName(
	envPrefix string,
	pluginType string,
	pluginName string,
) string {
	if p.CustomEnvVar != "" {
		return p.CustomEnvVar
	}
	ret := fmt.Sprintf("%s_%s_%s", pluginType, pluginName, p.Name)
	if envPrefix != "" {
		ret = envPrefix + "_" + ret
	}
	return strings.ToUpper(strings.ReplaceAll(ret, "-", "_"))
}

// AddToFlagSet registers the option as a command line flag bound to Dest
func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType string,
	pluginName string,
) error {
	flagName := p.flagName(pluginType, pluginName)
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: expected *string destination", p.Name)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: expected *bool destination", p.Name)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: expected *int destination", p.Name)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: expected *uint64 destination", p.Name)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

// ProcessEnvVars sets the option from its environment variable, if present
func (p *PluginOption) ProcessEnvVars(
	envPrefix string,
	pluginType string,
	pluginName string,
) error {
	value, ok := os.LookupEnv(p.envVarName(envPrefix, pluginType, pluginName))
	if !ok {
		return nil
	}
	parsed, err := p.parseString(value)
	if err != nil {
		return err
	}
	return p.setValue(parsed)
}

// ProcessConfig sets the option from a plugin config map, if present
func (p *PluginOption) ProcessConfig(pluginData map[string]any) error {
	value, ok := pluginData[p.Name]
	if !ok {
		return nil
	}
	// Config decoders produce their own numeric types
	switch v := value.(type) {
	case string:
		if p.Type != PluginOptionTypeString {
			parsed, err := p.parseString(v)
			if err != nil {
				return err
			}
			value = parsed
		}
	case int64:
		value = int(v)
	case uint:
		value = uint64(v)
	case float64:
		value = int(v)
	}
	return p.setValue(value)
}

func (p *PluginOption) parseString(value string) (any, error) {
	switch p.Type {
	case PluginOptionTypeString:
		return value, nil
	case PluginOptionTypeBool:
		return strconv.ParseBool(value)
	case PluginOptionTypeInt:
		return strconv.Atoi(value)
	case PluginOptionTypeUint:
		return strconv.ParseUint(value, 10, 64)
	default:
		return nil, fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

// setValue performs a type-checked assignment into Dest
func (p *PluginOption) setValue(value any) error {
	if p.Dest == nil {
		return fmt.Errorf("nil destination for option %s", p.Name)
	}
	switch p.Type {
	case PluginOptionTypeString:
		return assign[string](p.Name, p.Dest, value)
	case PluginOptionTypeBool:
		return assign[bool](p.Name, p.Dest, value)
	case PluginOptionTypeInt:
		return assign[int](p.Name, p.Dest, value)
	case PluginOptionTypeUint:
		if tv, ok := value.(int); ok {
			if tv < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", p.Name)
			}
			value = uint64(tv)
		}
		return assign[uint64](p.Name, p.Dest, value)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

func assign[T any](name string, dest any, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("invalid type for option %s: expected %T, got %T", name, *new(T), value)
	}
	d, ok := dest.(*T)
	if !ok || d == nil {
		return fmt.Errorf("invalid destination type for option %s: expected *%T", name, *new(T))
	}
	*d = v
	return nil
}
