// Package zonefile writes the records leaked by a vulnerable nameserver to
// a gzipped zone file on disk.
package zonefile

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hernandocastelli/zone-transfer/transfer"
)

// ErrFileClosed is returned when attempting to write to a closed file.
var ErrFileClosed = errors.New("file is already closed")

// File represents the zone file to create on disk. The file is written to
// a temporary path and only renamed into place when it holds records.
type File struct {
	filename    string
	filenameTmp string
	zone        string
	bufWriter   *bufio.Writer
	gzWriter    *gzip.Writer
	fileWriter  *os.File
	records     int64
	closed      bool
}

// New returns a handle to a zone file for one nameserver's leak, named
// <zone>_<nameserver>_<ip>.zone.gz under dir.
func New(dir string, res transfer.Result) *File {
	name := fmt.Sprintf("%s_%s_%s.zone.gz",
		strings.TrimSuffix(res.Zone, "."),
		strings.TrimSuffix(res.Nameserver, "."),
		res.IP)
	f := new(File)
	f.filename = filepath.Join(dir, name)
	f.filenameTmp = f.filename + ".tmp"
	f.zone = res.Zone
	return f
}

// Records returns the number of records written to the zone file.
func (f *File) Records() int64 {
	return f.records
}

// WriteComment adds a zone file comment.
func (f *File) WriteComment(key, value string) error {
	if err := f.fileReady(); err != nil {
		return err
	}
	_, err := f.bufWriter.WriteString(fmt.Sprintf("; %s: %s\n", key, value))
	return err
}

// fileReady lazily creates the file on the first write.
// Safe to call multiple times.
func (f *File) fileReady() error {
	var err error
	if f.closed {
		return ErrFileClosed
	}
	if f.bufWriter == nil {
		f.fileWriter, err = os.Create(f.filenameTmp)
		if err != nil {
			return err
		}
		f.gzWriter = gzip.NewWriter(f.fileWriter)
		f.gzWriter.ModTime = time.Now()
		f.gzWriter.Name = fmt.Sprintf("%s.zone", strings.TrimSuffix(f.zone, "."))
		f.bufWriter = bufio.NewWriter(f.gzWriter)
		// save metadata as leading comments
		if err = f.WriteComment("timestamp", time.Now().Format(time.RFC3339)); err != nil {
			return err
		}
		if err = f.WriteComment("zone", f.zone); err != nil {
			return err
		}
	}
	return nil
}

// AddRecord appends one leaked record to the zone file.
func (f *File) AddRecord(rec transfer.Record) error {
	if err := f.fileReady(); err != nil {
		return err
	}
	if _, err := f.bufWriter.WriteString(rec.Text() + "\n"); err != nil {
		return err
	}
	f.records++
	return nil
}

// Abort stops processing the zone file and removes it from disk.
func (f *File) Abort() error {
	f.records = 0 // forces Finish to remove the file
	return f.Finish()
}

// Finish adds closing comments, flushes and closes all buffers, and moves
// the file into place. Files with no records are removed instead.
func (f *File) Finish() error {
	if f.closed {
		return nil
	}
	if f.records > 0 {
		if err := f.WriteComment("records", fmt.Sprintf("%d", f.records)); err != nil {
			return err
		}
	}
	var err error
	if f.bufWriter != nil {
		if err = f.bufWriter.Flush(); err != nil {
			return err
		}
		if err = f.gzWriter.Close(); err != nil {
			return err
		}
		if err = f.fileWriter.Close(); err != nil {
			return err
		}
	}
	f.closed = true
	if f.bufWriter == nil {
		return nil
	}
	if f.records > 0 {
		return os.Rename(f.filenameTmp, f.filename)
	}
	return os.Remove(f.filenameTmp)
}

// Path returns the final path of the zone file.
func (f *File) Path() string {
	return f.filename
}

// Save writes all leaked records of a vulnerable result under dir and
// returns the path of the created file.
func Save(dir string, res transfer.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f := New(dir, res)
	if err := f.WriteComment("nameserver", res.Nameserver); err != nil {
		_ = f.Abort()
		return "", err
	}
	for _, rec := range res.Records {
		if err := f.AddRecord(rec); err != nil {
			_ = f.Abort()
			return "", err
		}
	}
	if err := f.Finish(); err != nil {
		return "", err
	}
	return f.Path(), nil
}
