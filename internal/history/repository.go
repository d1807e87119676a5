/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package history

import (
	"context"
	"errors"

	"github.com/seatunnel/launcher/internal/marketplace"
	"gorm.io/gorm"
)

// DefaultListLimit is the number of entries List returns by default
// DefaultListLimit 是 List 默认返回的记录数
const DefaultListLimit = 20

// Repository provides data access operations for Entry.
// Repository 提供 Entry 的数据访问操作。
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository instance.
// NewRepository 创建一个新的 Repository 实例。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record stores a finished command set. It satisfies marketplace.Recorder.
// Record 保存已完成的命令集，实现 marketplace.Recorder。
func (r *Repository) Record(ctx context.Context, cs *marketplace.CommandSet) error {
	if cs == nil || cs.ID == "" {
		return ErrCommandSetIDEmpty
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&Entry{}).Where("command_set_id = ?", cs.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCommandSetDuplicate
	}

	return r.db.WithContext(ctx).Create(FromCommandSet(cs)).Error
}

// Get retrieves an entry by command set ID.
// Get 通过命令集 ID 获取记录。
func (r *Repository) Get(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	if err := r.db.WithContext(ctx).Where("command_set_id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// List returns the most recent entries, newest first. A non-positive limit
// means DefaultListLimit.
// List 返回最近的记录，最新的在前。limit 非正数时使用 DefaultListLimit。
func (r *Repository) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var entries []*Entry
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of recorded command sets
// Count 返回已记录的命令集数量
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Entry{}).Count(&total).Error
	return total, err
}
