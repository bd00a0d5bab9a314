package spill

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/compression"
	"github.com/granitedb/granite/internal/types"
)

// RunReader streams frames back out of a run file in write order.
type RunReader struct {
	f      *os.File
	r      *bufio.Reader
	header column.Header
}

// OpenRun opens the run file and validates its header.
func OpenRun(run *Run) (*RunReader, error) {
	f, err := os.Open(run.path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "opening spill file %s", run.path), ErrStorage)
	}
	rr := &RunReader{f: f, r: bufio.NewReader(f)}
	if err := rr.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return rr, nil
}

func (rr *RunReader) readHeader() error {
	var magic [5]byte
	if _, err := io.ReadFull(rr.r, magic[:]); err != nil {
		return rr.storageErr(err, "reading run header")
	}
	if binary.LittleEndian.Uint32(magic[:4]) != runMagic || magic[4] != runVersion {
		return errors.Mark(errors.Newf("bad run file magic in %s", rr.f.Name()), ErrStorage)
	}

	numColumns, err := column.ReadVarUInt(rr.r)
	if err != nil {
		return rr.storageErr(err, "reading run header")
	}
	rr.header = column.Header{
		Names: make([]string, numColumns),
		Types: make([]types.DataType, numColumns),
	}
	for i := uint64(0); i < numColumns; i++ {
		name, err := readString(rr.r)
		if err != nil {
			return rr.storageErr(err, "reading column name")
		}
		typeName, err := readString(rr.r)
		if err != nil {
			return rr.storageErr(err, "reading column type")
		}
		dt, err := types.ParseDataType(typeName)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "run file %s", rr.f.Name()), ErrStorage)
		}
		rr.header.Names[i] = name
		rr.header.Types[i] = dt
	}
	return nil
}

// Header returns the column layout stored in the run file.
func (rr *RunReader) Header() column.Header { return rr.header }

// Next returns the next frame as a block, or io.EOF after the last one.
func (rr *RunReader) Next() (*column.Block, error) {
	numRows, err := column.ReadVarUInt(rr.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, rr.storageErr(err, "reading frame header")
	}

	cols := make([]column.Column, rr.header.NumColumns())
	for i := range cols {
		raw, err := compression.ReadBlock(rr.r)
		if err != nil {
			return nil, rr.storageErr(err, "reading column %s", rr.header.Names[i])
		}
		col, err := column.DecodeColumn(rr.header.Types[i], raw, int(numRows))
		if err != nil {
			return nil, rr.storageErr(err, "decoding column %s", rr.header.Names[i])
		}
		cols[i] = col
	}

	names := make([]string, len(rr.header.Names))
	copy(names, rr.header.Names)
	return column.NewBlock(names, cols), nil
}

// Close closes the underlying file. It does not delete it; that is the
// Run's job via Release.
func (rr *RunReader) Close() error {
	return rr.f.Close()
}

func (rr *RunReader) storageErr(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorage)
}

func readString(r *bufio.Reader) (string, error) {
	length, err := column.ReadVarUInt(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
