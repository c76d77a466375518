package metrics

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskStats represents disk usage statistics
type DiskStats struct {
	Path        string  `json:"path"`
	Fstype      string  `json:"fstype"`
	UsedPercent float64 `json:"used_percent"`
	UsedBytes   uint64  `json:"used_bytes"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
}

// GetDiskUsage returns disk usage statistics for the filesystem holding path
func GetDiskUsage(path string) (*DiskStats, error) {
	diskInfo, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}

	return &DiskStats{
		Path:        path,
		Fstype:      diskInfo.Fstype,
		UsedPercent: diskInfo.UsedPercent,
		UsedBytes:   diskInfo.Used,
		TotalBytes:  diskInfo.Total,
		FreeBytes:   diskInfo.Free,
	}, nil
}
