// Package layout contains the naming conventions of an experiment
// directory and the code that discovers run directories on disk.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/m-lab/flowstats/compressx"
)

// Capture files are named after the switch they were taken on: s1 is
// adjacent to the senders, s3 sits after the bottleneck.
const (
	SenderCapture     = "s1.pcap"
	BottleneckCapture = "s3.pcap"
)

// File extensions of the per-flow telemetry and buffer backlog logs.
const (
	FlowFileExtension   = "bbr"
	BufferFileExtension = "buffer"
)

// Output locations, relative to the run directory.
const (
	CSVDir      = "csv_data"
	InfoFile    = "values.info"
	ArchiveFile = "archive.jsonl.gz"
)

// ErrNoCapture is returned when a run directory lacks a capture file.
var ErrNoCapture = errors.New("capture file not found")

var (
	ipv4Pattern      = regexp.MustCompile(`[0-9]+(?:\.[0-9]+){3}`)
	interfacePattern = regexp.MustCompile(`^[^=]*-[^=]*-`)
)

// Captures returns the sender and bottleneck capture paths of dir.
func Captures(dir string) (sender, bottleneck string, err error) {
	sender, ok := compressx.Find(filepath.Join(dir, SenderCapture))
	if !ok {
		return "", "", fmt.Errorf("%w: %s in %s", ErrNoCapture, SenderCapture, dir)
	}
	bottleneck, ok = compressx.Find(filepath.Join(dir, BottleneckCapture))
	if !ok {
		return "", "", fmt.Errorf("%w: %s in %s", ErrNoCapture, BottleneckCapture, dir)
	}
	return sender, bottleneck, nil
}

// FlowFiles returns the sorted telemetry log paths of dir.
func FlowFiles(dir string) ([]string, error) {
	return glob(dir, FlowFileExtension)
}

// BufferFiles returns the sorted buffer backlog log paths of dir.
func BufferFiles(dir string) ([]string, error) {
	return glob(dir, BufferFileExtension)
}

func glob(dir, ext string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*."+ext+"*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// IPFromFilename returns the first dotted quad in the base name of path.
func IPFromFilename(path string) (string, bool) {
	ip := ipv4Pattern.FindString(trimExt(path))
	return ip, ip != ""
}

// InterfaceFromFilename returns the interface name encoded in a buffer
// backlog file name such as "s2-eth2-1.buffer".
func InterfaceFromFilename(path string) (string, bool) {
	m := interfacePattern.FindString(trimExt(path))
	if m == "" {
		return "", false
	}
	return m[:len(m)-1], true
}

// trimExt strips the compression and the log extensions from the base name.
func trimExt(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, compressx.MethodOf(base).Extension())
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsRunDir reports whether dir contains both captures. When onlyNew is
// true, directories whose CSV directory already holds the info file are
// excluded.
func IsRunDir(dir string, onlyNew bool) bool {
	if _, _, err := Captures(dir); err != nil {
		return false
	}
	if onlyNew && exists(filepath.Join(dir, CSVDir, InfoFile)) {
		return false
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindRunDirs returns the sorted run directories under root. Without
// recursive, only root itself is considered.
func FindRunDirs(root string, recursive, onlyNew bool) ([]string, error) {
	if !recursive {
		if IsRunDir(root, onlyNew) {
			return []string{root}, nil
		}
		return nil, nil
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && IsRunDir(path, onlyNew) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}
