package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenRecordCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "journal.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("打开 journal 失败：%v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ops := []FileOp{
		{RunID: "run-1", Code: "IPX-177", Op: "moved", Src: "/in/a.mp4", Dst: "/out/IPX-177/IPX-177.mp4"},
		{RunID: "run-1", Code: "IPX-177", Op: "duplicate_deleted", Src: "/in/b.mp4", Dst: "/out/IPX-177/IPX-177.mp4"},
		{RunID: "run-2", Code: "X-001", Op: "hardlinked", Src: "/in/c.mp4", Dst: "/out/X-001/X-001.mp4"},
	}
	for _, op := range ops {
		if err := s.Record(ctx, op); err != nil {
			t.Fatalf("写入记录失败：%v", err)
		}
	}

	n, err := s.CountByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("统计失败：%v", err)
	}
	if n != 2 {
		t.Fatalf("run-1 应有 2 条记录，实际 %d", n)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("首次打开失败：%v", err)
	}
	if err := s1.Record(context.Background(), FileOp{RunID: "r", Code: "C-1", Op: "moved"}); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("关闭失败：%v", err)
	}

	// 再次打开同一文件：schema 已存在，数据保留。
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("二次打开失败：%v", err)
	}
	defer s2.Close()

	n, err := s2.CountByRun(context.Background(), "r")
	if err != nil || n != 1 {
		t.Fatalf("历史数据应保留：n=%d err=%v", n, err)
	}
}
