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
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
)

// MysqlOptionFunc configures the store. Connection options edit the driver
// config directly and record the first invalid value in optErr
type MysqlOptionFunc func(*MetadataStoreMysql)

func WithLogger(logger *slog.Logger) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.logger = logger
	}
}

func WithPromRegistry(
	registry prometheus.Registerer,
) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.promRegistry = registry
	}
}

// WithAddress specifies the server host and TCP port. A zero port keeps
// the MySQL default of 3306
func WithAddress(host string, port uint) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		if port == 0 {
			port = DefaultPort
		}
		m.driverCfg.Net = "tcp"
		m.driverCfg.Addr = net.JoinHostPort(
			host,
			strconv.FormatUint(uint64(port), 10),
		)
	}
}

// WithCredentials specifies the user and password
func WithCredentials(user, password string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.driverCfg.User = user
		m.driverCfg.Passwd = password
	}
}

// WithDatabase specifies the schema to use. It is created on first start
// when missing
func WithDatabase(name string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.driverCfg.DBName = name
	}
}

// WithTLS sets the tls= DSN parameter ("true", "skip-verify", "preferred"
// or a registered config name). An empty value disables TLS
func WithTLS(mode string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.driverCfg.TLSConfig = strings.TrimSpace(mode)
	}
}

// WithTimeZone specifies the location used to interpret DATETIME values
func WithTimeZone(name string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		loc, err := time.LoadLocation(name)
		if err != nil {
			m.setOptErr(fmt.Errorf("invalid time zone %q: %w", name, err))
			return
		}
		m.driverCfg.Loc = loc
	}
}

// WithDSN replaces the whole driver config with a parsed DSN. Options
// applied after it still take effect
func WithDSN(dsn string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		dsn = strings.TrimSpace(dsn)
		if dsn == "" {
			return
		}
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			m.setOptErr(fmt.Errorf("invalid DSN: %w", err))
			return
		}
		cfg.ParseTime = true
		m.driverCfg = cfg
	}
}

// WithMaxConnections limits the number of open connections
func WithMaxConnections(maxConns int) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.maxConnections = maxConns
	}
}
