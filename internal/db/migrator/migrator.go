/*
 * MIT License
 *
 * Copyright (c) 2025 linux.do
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package migrator creates the tables of the history database.
package migrator

import (
	"context"
	"fmt"

	"github.com/seatunnel/launcher/internal/history"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table stctl owns
// Models 列出 stctl 拥有的所有表
func Models() []interface{} {
	return []interface{}{
		&history.Entry{}, // 命令集历史表 / Command set history table
	}
}

// Migrate runs the auto migration
// Migrate 执行自动迁移
func Migrate(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		log.Debug("History database disabled, skipping migration")
		return nil
	}
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	log.Debug("Auto migrate success")
	return nil
}
