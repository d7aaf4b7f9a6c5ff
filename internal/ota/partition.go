package ota

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lifo4/edge-controller/internal/domain"
)

// PartitionLabel names one of the two install slots.
type PartitionLabel = domain.PartitionLabel

const (
	PartitionA = domain.PartitionA
	PartitionB = domain.PartitionB
)

// PartitionManager tracks which partition is active via a marker file and
// installs new images into the inactive one.
type PartitionManager struct {
	partitionAPath string
	partitionBPath string
	markerPath     string
}

// NewPartitionManager builds a manager rooted at the two partition
// directories and the active-partition marker file.
func NewPartitionManager(partitionAPath, partitionBPath, markerPath string) *PartitionManager {
	return &PartitionManager{partitionAPath: partitionAPath, partitionBPath: partitionBPath, markerPath: markerPath}
}

// Active returns the currently active partition, defaulting to A if no
// marker has been written yet (first boot).
func (p *PartitionManager) Active() PartitionLabel {
	data, err := os.ReadFile(p.markerPath)
	if err != nil {
		return PartitionA
	}
	if strings.TrimSpace(string(data)) == string(PartitionB) {
		return PartitionB
	}
	return PartitionA
}

// Inactive returns the partition that isn't currently active.
func (p *PartitionManager) Inactive() PartitionLabel {
	return p.Active().Other()
}

// Path returns the filesystem directory backing a partition label.
func (p *PartitionManager) Path(label PartitionLabel) string {
	if label == PartitionB {
		return p.partitionBPath
	}
	return p.partitionAPath
}

// Install extracts a .tar.gz image into the target partition's directory.
func (p *PartitionManager) Install(imagePath string, target PartitionLabel) error {
	dir := p.Path(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}
	return extractTarGz(imagePath, dir)
}

// SwitchActive flips the marker file to point at target.
func (p *PartitionManager) SwitchActive(target PartitionLabel) error {
	if err := os.MkdirAll(filepath.Dir(p.markerPath), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	return os.WriteFile(p.markerPath, []byte(target), 0o644)
}

func extractTarGz(src, destDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open image archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write %s: %w", target, err)
			}
			out.Close()
		}
	}
}

// safeJoin prevents a malicious archive entry (e.g. "../../etc/passwd")
// from writing outside destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", fmt.Errorf("tar entry %q escapes destination directory", name)
	}
	return target, nil
}
