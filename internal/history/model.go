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

// Package history persists the command sets produced by package
// transactions so that they can be reviewed later with mp-history.
// history 包持久化包事务产生的命令集，以便之后通过 mp-history 查看。
package history

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/seatunnel/launcher/internal/marketplace"
)

// Commands is the JSON column holding the commands of a set
// Commands 是保存命令集中各命令的 JSON 列
type Commands []marketplace.PackageCommand

// Value implements the driver.Valuer interface for database storage.
// Value 实现 driver.Valuer 接口用于数据库存储。
func (c Commands) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for database retrieval.
// Scan 实现 sql.Scanner 接口用于数据库读取。
func (c *Commands) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("history: failed to scan Commands - expected []byte or string")
	}
}

// Entry is one persisted command set
// Entry 是一条持久化的命令集
type Entry struct {
	ID           uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	CommandSetID string    `json:"id" gorm:"size:36;uniqueIndex;not null"`
	Action       string    `json:"action" gorm:"size:20;not null;index"`
	Success      bool      `json:"success" gorm:"not null"`
	Total        int       `json:"total"`
	Failed       int       `json:"failed"`
	Commands     Commands  `json:"commands" gorm:"type:text"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for Entry
// TableName 指定 Entry 的表名
func (Entry) TableName() string {
	return "command_sets"
}

// FromCommandSet converts a command set into an Entry
// FromCommandSet 将命令集转换为 Entry
func FromCommandSet(cs *marketplace.CommandSet) *Entry {
	return &Entry{
		CommandSetID: cs.ID,
		Action:       cs.Action,
		Success:      cs.Success(),
		Total:        len(cs.Commands),
		Failed:       len(cs.Failed()),
		Commands:     Commands(cs.Commands),
		StartedAt:    cs.StartedAt,
		FinishedAt:   cs.FinishedAt,
	}
}

// CommandSet converts the entry back for rendering
// CommandSet 将 Entry 转换回命令集以便渲染
func (e *Entry) CommandSet() *marketplace.CommandSet {
	return &marketplace.CommandSet{
		ID:         e.CommandSetID,
		Action:     e.Action,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		Commands:   []marketplace.PackageCommand(e.Commands),
	}
}
