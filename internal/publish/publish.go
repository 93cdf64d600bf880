// Package publish writes committed records as markdown pages.
package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"

	"bibedit-cli/internal/store"
)

type WriteOptions struct {
	RenderOptions
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

func WriteRecord(ctx context.Context, db *store.DB, recID int, toDir string, opt WriteOptions) (WriteResult, error) {
	if db == nil {
		return WriteResult{}, errors.New("missing db")
	}
	if recID <= 0 {
		return WriteResult{}, errors.New("missing record id")
	}
	toDir, err := cleanDir(toDir)
	if err != nil {
		return WriteResult{}, err
	}

	outDir := filepath.Join(toDir, "records")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	p, err := writeRecordPage(ctx, db, recID, outDir, opt)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: []string{p}}, nil
}

// WriteAll writes index.md and one page per committed record.
func WriteAll(ctx context.Context, db *store.DB, toDir string, opt WriteOptions) (WriteResult, error) {
	if db == nil {
		return WriteResult{}, errors.New("missing db")
	}
	toDir, err := cleanDir(toDir)
	if err != nil {
		return WriteResult{}, err
	}
	infos, err := db.List(ctx)
	if err != nil {
		return WriteResult{}, err
	}

	outDir := filepath.Join(toDir, "records")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	indexPath := filepath.Join(toDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(infos)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on first error.
	written := []string{indexPath}
	for _, info := range infos {
		p, err := writeRecordPage(ctx, db, info.RecID, outDir, opt)
		if err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

func cleanDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", errors.New("missing --to")
	}
	return filepath.Clean(dir), nil
}

func writeRecordPage(ctx context.Context, db *store.DB, recID int, outDir string, opt WriteOptions) (string, error) {
	md, err := RenderRecordMarkdown(ctx, db, recID, opt.RenderOptions)
	if err != nil {
		return "", err
	}
	p := filepath.Join(outDir, strconv.Itoa(recID)+".md")
	if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
		return "", err
	}
	return p, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return atomic.WriteFile(path, strings.NewReader(string(b)))
}
