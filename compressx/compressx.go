// Package compressx opens and creates files that are optionally gzip or
// bzip2 compressed, choosing the codec from the file extension.
package compressx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Method is a compression method for output files.
type Method string

// Compression methods.
const (
	None  = Method("none")
	Gzip  = Method("gzip")
	Bzip2 = Method("bzip2")
)

// ErrUnknownMethod is returned for compression methods we do not support.
var ErrUnknownMethod = errors.New("unknown compression method")

// Methods lists the supported methods, in lookup order.
var Methods = []Method{None, Gzip, Bzip2}

// Extension returns the file name suffix of |m|.
func (m Method) Extension() string {
	switch m {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	}
	return ""
}

// ParseMethod converts a method name into a Method.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// MethodOf returns the compression method implied by the extension of path.
func MethodOf(path string) Method {
	switch filepath.Ext(path) {
	case ".gz":
		return Gzip
	case ".bz2":
		return Bzip2
	}
	return None
}

// readCloser closes the decompressor and then the underlying file.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, transparently decompressing it when its
// extension is .gz or .bz2.
func Open(path string) (io.ReadCloser, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch MethodOf(path) {
	case Gzip:
		zr, err := gzip.NewReader(fp)
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, fp}}, nil
	case Bzip2:
		br, err := bzip2.NewReader(fp, nil)
		if err != nil {
			fp.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &readCloser{Reader: br, closers: []io.Closer{br, fp}}, nil
	}
	return fp, nil
}

// File is a file being written, possibly through a compressor.
type File struct {
	// Writer is where callers write uncompressed data.
	Writer io.Writer

	// fp is the underlying file.
	fp *os.File

	// zw is the optional compressor.
	zw io.WriteCloser
}

// Create creates path, compressing what is written to it when its
// extension is .gz or .bz2.
func Create(path string) (*File, error) {
	fp, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	var zw io.WriteCloser
	switch MethodOf(path) {
	case Gzip:
		zw, err = gzip.NewWriterLevel(fp, gzip.BestSpeed)
	case Bzip2:
		zw, err = bzip2.NewWriter(fp, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	default:
		return &File{Writer: fp, fp: fp}, nil
	}
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &File{Writer: zw, fp: fp, zw: zw}, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.Writer.Write(p)
}

// Close flushes the compressor, if any, and closes the file.
func (f *File) Close() error {
	if f.zw != nil {
		err := f.zw.Close()
		if err != nil {
			f.fp.Close()
			return err
		}
	}
	return f.fp.Close()
}

// Find returns the first existing file among path followed by each
// compression extension, or false if none exists.
func Find(path string) (string, bool) {
	for _, m := range Methods {
		candidate := path + m.Extension()
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
