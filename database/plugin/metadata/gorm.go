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

package metadata

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const commitTimestampRowId = 1

// CommitTimestamp tracks the timestamp of the last coordinated commit
type CommitTimestamp struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (CommitTimestamp) TableName() string {
	return "commit_timestamp"
}

// GormConfig returns the gorm settings shared by all metadata plugins
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
}

// Setup enables tracing, registers connection pool metrics and migrates
// the ledger schema on a freshly opened handle
func Setup(
	db *gorm.DB,
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) error {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if promRegistry != nil {
		if err := registerPoolMetrics(db, pluginName, promRegistry); err != nil {
			return err
		}
	}
	logger.Debug(fmt.Sprintf("creating table: %#v", &CommitTimestamp{}))
	if err := db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

func registerPoolMetrics(
	db *gorm.DB,
	pluginName string,
	promRegistry prometheus.Registerer,
) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	promautoFactory := promauto.With(promRegistry)
	labels := prometheus.Labels{"plugin": pluginName}
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "database_metadata_open_connections",
			Help:        "Open connections to the metadata database",
			ConstLabels: labels,
		},
		func() float64 { return float64(sqlDB.Stats().OpenConnections) },
	)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "database_metadata_in_use_connections",
			Help:        "Metadata database connections currently in use",
			ConstLabels: labels,
		},
		func() float64 { return float64(sqlDB.Stats().InUse) },
	)
	return nil
}

// GetCommitTimestamp reads the stored commit timestamp, 0 when unset
func GetCommitTimestamp(db *gorm.DB) (int64, error) {
	var tmpCommitTimestamp CommitTimestamp
	result := db.First(&tmpCommitTimestamp)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpCommitTimestamp.Timestamp, nil
}

// SetCommitTimestamp upserts the commit timestamp row
func SetCommitTimestamp(db *gorm.DB, timestamp int64) error {
	if db == nil {
		return ErrStoreNotStarted
	}
	tmpCommitTimestamp := CommitTimestamp{
		ID:        commitTimestampRowId,
		Timestamp: timestamp,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&tmpCommitTimestamp)
	return result.Error
}
