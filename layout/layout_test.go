package layout

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/m-lab/go/rtx"
)

func touch(t *testing.T, path string) {
	rtx.Must(os.MkdirAll(filepath.Dir(path), 0755), "Could not mkdir")
	rtx.Must(os.WriteFile(path, nil, 0644), "Could not create %s", path)
}

func TestCaptures(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Captures(dir); !errors.Is(err, ErrNoCapture) {
		t.Errorf("Captures() error = %v, want ErrNoCapture", err)
	}
	touch(t, filepath.Join(dir, "s1.pcap.gz"))
	if _, _, err := Captures(dir); !errors.Is(err, ErrNoCapture) {
		t.Errorf("Captures() error = %v, want ErrNoCapture", err)
	}
	touch(t, filepath.Join(dir, "s3.pcap"))
	s, b, err := Captures(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s != filepath.Join(dir, "s1.pcap.gz") || b != filepath.Join(dir, "s3.pcap") {
		t.Errorf("Captures() = %q, %q", s, b)
	}
}

func TestFilenames(t *testing.T) {
	tests := []struct {
		path  string
		ip    string
		ipOK  bool
		intf  string
		intOK bool
	}{
		{path: "/x/10.0.0.1.bbr", ip: "10.0.0.1", ipOK: true},
		{path: "/x/h0-10.1.0.12.bbr.gz", ip: "10.1.0.12", ipOK: true},
		{path: "/x/s2-eth2-1.buffer", intf: "s2-eth2", intOK: true},
		{path: "/x/s2-eth2-1.buffer.bz2", intf: "s2-eth2", intOK: true},
		{path: "/x/plain.buffer"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ip, ok := IPFromFilename(tt.path)
			if ip != tt.ip || ok != tt.ipOK {
				t.Errorf("IPFromFilename() = %q, %v", ip, ok)
			}
			intf, ok := InterfaceFromFilename(tt.path)
			if intf != tt.intf || ok != tt.intOK {
				t.Errorf("InterfaceFromFilename() = %q, %v", intf, ok)
			}
		})
	}
}

func TestFindRunDirs(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b", "nested")
	for _, d := range []string{a, b} {
		touch(t, filepath.Join(d, SenderCapture))
		touch(t, filepath.Join(d, BottleneckCapture+".gz"))
	}
	touch(t, filepath.Join(root, "c", SenderCapture))
	touch(t, filepath.Join(a, CSVDir, InfoFile))
	// An interrupted run leaves the CSV directory without the info file.
	rtx.Must(os.MkdirAll(filepath.Join(b, CSVDir), 0755), "Could not mkdir")

	got, err := FindRunDirs(root, true, false)
	rtx.Must(err, "FindRunDirs failed")
	if !reflect.DeepEqual(got, []string{a, b}) {
		t.Errorf("FindRunDirs(recursive) = %v", got)
	}
	got, err = FindRunDirs(root, true, true)
	rtx.Must(err, "FindRunDirs failed")
	if !reflect.DeepEqual(got, []string{b}) {
		t.Errorf("FindRunDirs(onlyNew) = %v", got)
	}
	got, err = FindRunDirs(root, false, false)
	rtx.Must(err, "FindRunDirs failed")
	if len(got) != 0 {
		t.Errorf("FindRunDirs(root) = %v", got)
	}
	got, err = FindRunDirs(a, false, false)
	rtx.Must(err, "FindRunDirs failed")
	if !reflect.DeepEqual(got, []string{a}) {
		t.Errorf("FindRunDirs(a) = %v", got)
	}
}

func TestFlowFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "10.0.0.2.bbr"))
	touch(t, filepath.Join(dir, "10.0.0.1.bbr.gz"))
	touch(t, filepath.Join(dir, "s2-eth2-1.buffer"))
	got, err := FlowFiles(dir)
	rtx.Must(err, "FlowFiles failed")
	want := []string{filepath.Join(dir, "10.0.0.1.bbr.gz"), filepath.Join(dir, "10.0.0.2.bbr")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FlowFiles() = %v", got)
	}
	got, err = BufferFiles(dir)
	rtx.Must(err, "BufferFiles failed")
	if !reflect.DeepEqual(got, []string{filepath.Join(dir, "s2-eth2-1.buffer")}) {
		t.Errorf("BufferFiles() = %v", got)
	}
}
