package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPages_SkipSavedAssetDirs(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "collect_start0.html"))
	touch(t, filepath.Join(root, "collect_start0_files", "frame.html"))
	touch(t, filepath.Join(root, "collect_start0_files", "style.css"))
	touch(t, filepath.Join(root, "notes.txt"))

	got, err := Pages(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个页面，实际 %d：%+v", len(got), got)
	}
	if got[0].RelPath != "collect_start0.html" {
		t.Fatalf("期望 rel=collect_start0.html，实际=%q", got[0].RelPath)
	}
}

func TestPages_ExcludeDirs(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "old", "a.html"))
	touch(t, filepath.Join(root, "2026", "b.htm"))

	got, err := Pages(root, []string{"old"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个页面，实际 %d", len(got))
	}
	wantRel := filepath.Join("2026", "b.htm")
	if got[0].RelPath != wantRel {
		t.Fatalf("期望 rel=%q，实际=%q", wantRel, got[0].RelPath)
	}
}

func TestPages_StableOrderAndExtCase(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "p2.HTML"))
	touch(t, filepath.Join(root, "p1.html"))

	got, err := Pages(root, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 || got[0].RelPath != "p1.html" || got[1].RelPath != "p2.HTML" {
		t.Fatalf("输出顺序不符合预期：%+v", got)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
