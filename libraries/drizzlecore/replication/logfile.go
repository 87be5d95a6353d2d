// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package replication

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

const (
	logFilePrefix = "replog."
	headerSize    = 12
	// DefaultMaxLogSize is the size past which a log file is rotated when no size is configured.
	DefaultMaxLogSize = 1 << 20
)

// logFileMagicNumber starts every replication log file.
var logFileMagicNumber = []byte{0xfe, 'r', 'p', 'l'}

// ErrCorruptLog is returned when a log file does not start with the magic number or a record fails its checksum.
var ErrCorruptLog = errors.New("corrupt replication log")

// LogManager is a Sink that appends events to numbered log files in a directory. Each record is the event's
// length, an xxhash checksum of the event and the event itself. A new file is started whenever the manager is
// created and whenever the current file grows past the maximum size.
type LogManager struct {
	mu          sync.Mutex
	fs          filesys.Filesys
	dir         string
	maxSize     int64
	currentFile string
	currentSize int64
}

var _ Sink = (*LogManager)(nil)

// NewLogManager opens the log directory |dir| on |fs|, creating it if needed, and starts a new log file.
func NewLogManager(fs filesys.Filesys, dir string, maxSize int64) (*LogManager, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	if err := fs.MkDirs(dir); err != nil {
		return nil, err
	}

	lm := &LogManager{fs: fs, dir: dir, maxSize: maxSize}
	if err := lm.createNewLogFile(); err != nil {
		return nil, err
	}
	return lm, nil
}

// Dir returns the directory the log files are written to.
func (lm *LogManager) Dir() string {
	return lm.dir
}

// CurrentLogFile returns the name of the file events are appended to.
func (lm *LogManager) CurrentLogFile() string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.currentFile
}

func (lm *LogManager) createNewLogFile() error {
	files, err := LogFiles(lm.fs, lm.dir)
	if err != nil {
		return err
	}

	next := formatLogFilename(1)
	if len(files) > 0 {
		seq, err := parseLogFilename(files[len(files)-1])
		if err != nil {
			return err
		}
		next = formatLogFilename(seq + 1)
	}

	logrus.Tracef("initializing replication log file: %s", next)
	if err := lm.fs.WriteFile(filepath.Join(lm.dir, next), logFileMagicNumber, 0o644); err != nil {
		return err
	}
	lm.currentFile = next
	lm.currentSize = int64(len(logFileMagicNumber))
	return nil
}

// RotateLogFile starts a new log file.
func (lm *LogManager) RotateLogFile() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.createNewLogFile()
}

// Emit appends |ev| to the current log file, rotating afterwards if the file has grown past the maximum size.
func (lm *LogManager) Emit(_ context.Context, ev Event) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	payload := Marshal(ev)
	record := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint32(record[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(record[4:12], xxhash.Sum64(payload))
	record = append(record, payload...)

	path := filepath.Join(lm.dir, lm.currentFile)
	wr, err := lm.fs.OpenForWriteAppend(path, 0o644)
	if err != nil {
		return err
	}
	if _, err := wr.Write(record); err != nil {
		wr.Close()
		return errors.Wrapf(err, "writing to %s", path)
	}
	if err := wr.Close(); err != nil {
		return errors.Wrapf(err, "writing to %s", path)
	}

	lm.currentSize += int64(len(record))
	if lm.currentSize > lm.maxSize {
		logrus.Debugf("replication log %s reached %d bytes, rotating", lm.currentFile, lm.currentSize)
		return lm.createNewLogFile()
	}
	return nil
}

// LogFiles returns the names of the log files in |dir|, oldest first.
func LogFiles(fs filesys.Filesys, dir string) ([]string, error) {
	var files []string
	err := fs.Iter(dir, false, func(path string, _ int64, isDir bool) bool {
		base := filepath.Base(path)
		if !isDir && strings.HasPrefix(base, logFilePrefix) {
			if _, err := parseLogFilename(base); err == nil {
				files = append(files, base)
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadLogFile returns the events in the log file |name| in |dir|.
func ReadLogFile(fs filesys.Filesys, dir, name string) ([]Event, error) {
	path := filepath.Join(dir, name)
	rd, err := fs.OpenForRead(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	magic := make([]byte, len(logFileMagicNumber))
	if _, err := io.ReadFull(rd, magic); err != nil || !bytes.Equal(magic, logFileMagicNumber) {
		return nil, errors.Wrapf(ErrCorruptLog, "%s: bad magic number", path)
	}

	var events []Event
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(rd, header); err == io.EOF {
			return events, nil
		} else if err != nil {
			return nil, errors.Wrapf(ErrCorruptLog, "%s: truncated record header after %d events", path, len(events))
		}

		payload := make([]byte, binary.LittleEndian.Uint32(header[0:4]))
		if _, err := io.ReadFull(rd, payload); err != nil {
			return nil, errors.Wrapf(ErrCorruptLog, "%s: truncated record after %d events", path, len(events))
		}
		if xxhash.Sum64(payload) != binary.LittleEndian.Uint64(header[4:12]) {
			return nil, errors.Wrapf(ErrCorruptLog, "%s: checksum mismatch after %d events", path, len(events))
		}

		ev, err := Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}

// ReadEvents returns the events of every log file in |dir| in the order they were written.
func ReadEvents(fs filesys.Filesys, dir string) ([]Event, error) {
	files, err := LogFiles(fs, dir)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, f := range files {
		evs, err := ReadLogFile(fs, dir, f)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

// formatLogFilename returns the name of the log file with sequence number |seq|, such as "replog.000001".
func formatLogFilename(seq int) string {
	return fmt.Sprintf("%s%06d", logFilePrefix, seq)
}

func parseLogFilename(name string) (int, error) {
	if !strings.HasPrefix(name, logFilePrefix) {
		return 0, fmt.Errorf("invalid replication log filename: %s; must start with '%s'", name, logFilePrefix)
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(name, logFilePrefix))
	if err != nil {
		return 0, fmt.Errorf("unable to parse replication log sequence number of %s: %w", name, err)
	}
	return seq, nil
}
