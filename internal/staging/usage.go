package staging

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Usage reports disk usage for the filesystem holding the download root.
type Usage struct {
	Total         uint64 `json:"total"`
	Used          uint64 `json:"used"`
	Free          uint64 `json:"free"`
	DownloadsSize int64  `json:"downloads_size"`
}

// DiskUsage statfs's root, creating it first when missing, and totals the
// bytes held by regular files beneath it.
func DiskUsage(root string) (Usage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Usage{}, fmt.Errorf("ensure download dir: %w", err)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", root, err)
	}
	blockSize := uint64(stat.Bsize)
	total := stat.Blocks * blockSize
	free := stat.Bavail * blockSize
	used := total - stat.Bfree*blockSize
	size, _ := dirSize(root)
	return Usage{Total: total, Used: used, Free: free, DownloadsSize: size}, nil
}
