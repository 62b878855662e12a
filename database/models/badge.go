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

package models

import "errors"

var ErrBadgeNotFound = errors.New("badge not found")

// Badge is a reputation NFT. Burned badges keep their row for history.
type Badge struct {
	Name     string `gorm:"size:128"`
	Owner    string `gorm:"index;size:42;not null"`
	ID       uint64 `gorm:"primarykey;autoIncrement:false"`
	MintedAt int64
	BurnedAt int64
	Level    uint32
	Type     uint8 `gorm:"index"`
	Burned   bool  `gorm:"index"`
}

func (Badge) TableName() string {
	return "badge"
}

// BadgeImage maps a badge type to a content-addressed image
type BadgeImage struct {
	Cid  string `gorm:"size:128;not null"`
	Type uint8  `gorm:"primarykey;autoIncrement:false"`
}

func (BadgeImage) TableName() string {
	return "badge_image"
}
