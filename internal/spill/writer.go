package spill

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/compression"
)

// Run file layout:
//   [magic (4 LE)] [version (1)]
//   [varint numColumns] then per column: [varint len][name] [varint len][type name]
//   repeated frames: [varint numRows] then per column one compressed block
//     (see compression frame format) holding the encoded column data.
// EOF delimits; there is no trailer.

const (
	runMagic   uint32 = 0x31534752 // "RGS1" little-endian on disk
	runVersion byte   = 1
)

// RunWriter streams sorted blocks into one run file. The file is created
// immediately and removed by Abort, or handed over to a Run by Finish.
type RunWriter struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	header column.Header
	codec  compression.Codec
	rows   uint64
	logger *zap.Logger
}

// NewRunWriter creates the run file under dir and writes the header.
func NewRunWriter(dir string, header column.Header, logger *zap.Logger) (*RunWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dir, "sort-run-"+uuid.NewString()+".bin")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "creating spill file %s", path), ErrStorage)
	}

	rw := &RunWriter{
		path:   path,
		f:      f,
		w:      bufio.NewWriter(f),
		header: header,
		codec:  &compression.LZ4Codec{},
		logger: logger,
	}
	if err := rw.writeHeader(); err != nil {
		rw.Abort()
		return nil, err
	}
	return rw, nil
}

func (rw *RunWriter) writeHeader() error {
	var magic [5]byte
	binary.LittleEndian.PutUint32(magic[:4], runMagic)
	magic[4] = runVersion
	if _, err := rw.w.Write(magic[:]); err != nil {
		return rw.storageErr(err, "writing run header")
	}
	if err := column.WriteVarUInt(rw.w, uint64(rw.header.NumColumns())); err != nil {
		return rw.storageErr(err, "writing run header")
	}
	for i, name := range rw.header.Names {
		if err := writeString(rw.w, name); err != nil {
			return rw.storageErr(err, "writing run header")
		}
		if err := writeString(rw.w, rw.header.Types[i].Name()); err != nil {
			return rw.storageErr(err, "writing run header")
		}
	}
	return nil
}

// WriteBlock appends one sorted block as a frame.
func (rw *RunWriter) WriteBlock(b *column.Block) error {
	if b.NumRows() == 0 {
		return nil
	}
	if err := column.WriteVarUInt(rw.w, uint64(b.NumRows())); err != nil {
		return rw.storageErr(err, "writing frame header")
	}
	for i, col := range b.Columns {
		raw, err := column.EncodeColumn(col)
		if err != nil {
			return rw.storageErr(err, "encoding column %s", b.ColumnNames[i])
		}
		frame, err := compression.CompressBlock(rw.codec, raw)
		if err != nil {
			return rw.storageErr(err, "compressing column %s", b.ColumnNames[i])
		}
		if _, err := rw.w.Write(frame); err != nil {
			return rw.storageErr(err, "writing column %s", b.ColumnNames[i])
		}
	}
	rw.rows += uint64(b.NumRows())
	return nil
}

// Finish flushes and closes the file, returning the Run handle that now
// owns it.
func (rw *RunWriter) Finish() (*Run, error) {
	if err := rw.w.Flush(); err != nil {
		return nil, rw.storageErr(err, "flushing run")
	}
	if err := rw.f.Close(); err != nil {
		rw.f = nil
		return nil, rw.storageErr(err, "closing run")
	}
	rw.f = nil
	return &Run{path: rw.path, rows: rw.rows, logger: rw.logger}, nil
}

// Abort closes and deletes the partially written file. Idempotent; a
// failed writer must be aborted so no partial spill file survives.
func (rw *RunWriter) Abort() {
	if rw.f != nil {
		rw.f.Close()
		rw.f = nil
	}
	if err := os.Remove(rw.path); err != nil && !os.IsNotExist(err) {
		rw.logger.Warn("failed to remove partial spill file",
			zap.String("path", rw.path), zap.Error(err))
	}
}

func (rw *RunWriter) storageErr(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorage)
}

func writeString(w *bufio.Writer, s string) error {
	if err := column.WriteVarUInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// WriteRun writes one sorted block as a complete run. Partial files are
// removed before an error surfaces.
func WriteRun(dir string, header column.Header, b *column.Block, logger *zap.Logger) (*Run, error) {
	rw, err := NewRunWriter(dir, header, logger)
	if err != nil {
		return nil, err
	}
	if err := rw.WriteBlock(b); err != nil {
		rw.Abort()
		return nil, err
	}
	run, err := rw.Finish()
	if err != nil {
		rw.Abort()
		return nil, err
	}
	return run, nil
}
