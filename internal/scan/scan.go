package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Page 是一份保存在本地的豆瓣“看过”列表页。
type Page struct {
	AbsPath string
	RelPath string
}

// Pages 扫描 root 下保存的 HTML 页面，并应用目录排除规则。
//
// 规则：
// - 浏览器“网页，全部”保存产生的 <name>_files/ 资源目录永久排除
// - excludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
// - 输出按 RelPath 排序；跨页重复的条目由导入阶段按豆瓣 ID 去重
func Pages(root string, excludeDirs []string) ([]Page, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	pages := make([]Page, 0, 16)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasSuffix(d.Name(), "_files") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isPageExt(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		pages = append(pages, Page{AbsPath: path, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].RelPath < pages[j].RelPath })
	return pages, nil
}

func isPageExt(ext string) bool {
	switch ext {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
