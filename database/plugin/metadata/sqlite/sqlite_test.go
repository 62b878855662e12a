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

package sqlite_test

import (
	"testing"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T, dataDir string) *sqlite.MetadataStoreSqlite {
	store, err := sqlite.New(dataDir, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrateCreatesLedgerTables(t *testing.T) {
	store := newTestStore(t, "")
	for _, model := range models.MigrateModels {
		assert.True(t, store.DB().Migrator().HasTable(model), "%T", model)
	}
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	first := newTestStore(t, "")
	second := newTestStore(t, "")
	require.NoError(t, first.DB().Create(&models.Account{Address: "0x01"}).Error)
	var count int64
	require.NoError(t, second.DB().Model(&models.Account{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(txn, 1700000000000))
	require.NoError(t, txn.Commit().Error)
	// Update path of the upsert
	require.NoError(t, store.SetCommitTimestamp(nil, 1700000000500))

	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000500), ts)
}

func TestUint64ColumnRoundTrip(t *testing.T) {
	store := newTestStore(t, "")
	acct := models.Account{
		Address: "0xabc",
		Balance: types.Uint64(18446744073709551615),
	}
	require.NoError(t, store.DB().Create(&acct).Error)
	var loaded models.Account
	require.NoError(t, store.DB().Where("address = ?", "0xabc").First(&loaded).Error)
	assert.Equal(t, acct.Balance, loaded.Balance)
}

func TestProposalOptionsPreload(t *testing.T) {
	store := newTestStore(t, "")
	proposal := models.Proposal{
		ID:       1,
		Title:    "Raise quorum",
		Proposer: "0xabc",
		Options: []models.ProposalOption{
			{Position: 0, Label: "For"},
			{Position: 1, Label: "Against"},
		},
	}
	require.NoError(t, store.DB().Create(&proposal).Error)
	var loaded models.Proposal
	require.NoError(
		t,
		store.DB().Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).First(&loaded, 1).Error,
	)
	assert.Equal(t, []string{"For", "Against"}, loaded.OptionLabels())
}
