package app

import (
	"testing"

	"github.com/John-Robertt/AVMO/internal/domain"
)

func file(rel, base string) domain.MediaFile {
	return domain.MediaFile{
		AbsPath: "/lib/" + rel,
		RelPath: rel,
		Base:    base,
	}
}

func TestGroupByCode_MultiPartSameCode(t *testing.T) {
	files := []domain.MediaFile{
		file("in/x-001-cd2.mp4", "x-001-cd2"),
		file("in/x-001-cd1.mp4", "x-001-cd1"),
	}

	items, unmatched, err := GroupByCode(files)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(unmatched) != 0 {
		t.Fatalf("不期望 unmatched：%+v", unmatched)
	}
	if len(items) != 1 || items[0].Code != "X-001" {
		t.Fatalf("分组不符合预期：%+v", items)
	}
	// FileIdx 按 RelPath 排序：cd1 在 cd2 前（决定 -CD{n} 编号）。
	if items[0].FileIdx[0] != 1 || items[0].FileIdx[1] != 0 {
		t.Fatalf("分片顺序不稳定：%v", items[0].FileIdx)
	}
}

func TestGroupByCode_UnmatchedCollected(t *testing.T) {
	files := []domain.MediaFile{
		file("in/IPX-177.mp4", "IPX-177"),
		file("in/movie.mp4", "movie"),
	}

	items, unmatched, err := GroupByCode(files)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(items) != 1 || len(unmatched) != 1 {
		t.Fatalf("期望 1 item + 1 unmatched：%+v %+v", items, unmatched)
	}
	if unmatched[0].Kind != "no_match" {
		t.Fatalf("Kind 不符合预期：%q", unmatched[0].Kind)
	}
}

func TestGroupByCode_ItemsSortedByCode(t *testing.T) {
	files := []domain.MediaFile{
		file("in/ZZZ-999.mp4", "ZZZ-999"),
		file("in/ABC-123.mp4", "ABC-123"),
	}

	items, _, err := GroupByCode(files)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if items[0].Code != "ABC-123" || items[1].Code != "ZZZ-999" {
		t.Fatalf("items 应按 Code 排序：%+v", items)
	}
}
