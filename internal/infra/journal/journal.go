// Package journal 把每一次物理文件操作记入 SQLite 审计日志。
//
// 搬移层的“目标已存在即删除当前源文件”策略不比较内容，被丢弃的文件可能与
// 目标并不相同；journal 的存在让操作员事后能审计每一条删除与移动。
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store 管理 journal 的 SQLite 持久化。
type Store struct {
	db   *sql.DB
	path string
}

// FileOp 是一条文件操作记录。Op 取值与搬移结果状态/清理事件一致
// （moved/hardlinked/duplicate_deleted/cleanup_removed 等）。
type FileOp struct {
	RunID  string
	Code   string
	Op     string
	Src    string
	Dst    string
	Detail string
}

const schema = `
CREATE TABLE IF NOT EXISTS file_ops (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL,
    code       TEXT NOT NULL,
    op         TEXT NOT NULL,
    src        TEXT NOT NULL,
    dst        TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_ops_run ON file_ops(run_id);
CREATE INDEX IF NOT EXISTS idx_file_ops_code ON file_ops(code);
`

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open 打开（必要时创建）path 处的 journal 数据库并确保 schema 就绪。
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接即可：写入量小，且避免多连接下的锁竞争。
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化 journal schema 失败：%w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record 写入一条文件操作记录（遇 SQLITE_BUSY 自动退避重试）。
func (s *Store) Record(ctx context.Context, op FileOp) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO file_ops (run_id, code, op, src, dst, detail, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			op.RunID, op.Code, op.Op, op.Src, op.Dst, op.Detail,
			time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}

// CountByRun 返回某次 run 写入的记录数（主要供测试与自检使用）。
func (s *Store) CountByRun(ctx context.Context, runID string) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM file_ops WHERE run_id = ?`, runID,
		).Scan(&n)
	})
	return n, err
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
