package workflow

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mediagrab/internal/jobs"
)

// writeArchive bundles the artifacts of finished children into
// <root>/<parentID>.zip. Media is already compressed, so entries are stored.
func writeArchive(root, parentID string, children []jobs.Job) (string, error) {
	target := jobs.ArchivePath(root, parentID)
	tmp := target + ".partial"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	writer := zip.NewWriter(file)
	used := make(map[string]int, len(children))
	var writeErr error
	for _, child := range children {
		if child.Filepath == "" {
			continue
		}
		if err := addArchiveEntry(writer, child.Filepath, uniqueEntryName(used, filepath.Base(child.Filepath))); err != nil {
			writeErr = err
			break
		}
	}
	closeErr := errors.Join(writer.Close(), file.Close())
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return target, nil
}

func addArchiveEntry(writer *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Store
	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func uniqueEntryName(used map[string]int, name string) string {
	count := used[name]
	used[name] = count + 1
	if count == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), count, ext)
}

// archiveName is the download name offered for a playlist archive.
func archiveName(title, id string) string {
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if title == "" {
		title = id
	}
	return title + jobs.ArchiveExt
}
