package compression

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Compressed block frame (matching ClickHouse, minus the 16-byte CityHash
// checksum):
//   [method_byte (1)] [compressed_size_with_header (4 LE)] [uncompressed_size (4 LE)] [payload...]
//
// compressed_size_with_header includes the 9-byte header itself.

const HeaderSize = 9

// CompressBlock compresses data and returns the full frame (header +
// payload). Falls back to stored (MethodNone) when compression does not
// shrink the data, so decompression dispatches purely on the method byte.
func CompressBlock(codec Codec, data []byte) ([]byte, error) {
	compressed, err := codec.Compress(data)
	if err != nil {
		return nil, err
	}

	method := codec.MethodByte()
	if len(compressed) >= len(data) {
		method = MethodNone
		compressed = data
	}

	totalSize := HeaderSize + len(compressed)
	block := make([]byte, totalSize)
	block[0] = method
	binary.LittleEndian.PutUint32(block[1:5], uint32(totalSize))
	binary.LittleEndian.PutUint32(block[5:9], uint32(len(data)))
	copy(block[HeaderSize:], compressed)

	return block, nil
}

// DecompressBlock reads a full frame, validates the header, and returns
// the decompressed payload.
func DecompressBlock(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("compressed block too small: %d bytes", len(data))
	}

	compressedSizeWithHeader := binary.LittleEndian.Uint32(data[1:5])
	uncompressedSize := binary.LittleEndian.Uint32(data[5:9])
	if int(compressedSizeWithHeader) > len(data) {
		return nil, fmt.Errorf("compressed block size mismatch: header says %d, have %d",
			compressedSizeWithHeader, len(data))
	}

	codec, err := CodecForMethod(data[0])
	if err != nil {
		return nil, err
	}
	return codec.Decompress(data[HeaderSize:compressedSizeWithHeader], int(uncompressedSize))
}

// ReadBlock reads one complete frame from r and returns the decompressed
// payload. Returns io.EOF cleanly when r is exhausted at a frame boundary.
func ReadBlock(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading block header: %w", err)
	}

	compressedSizeWithHeader := binary.LittleEndian.Uint32(header[1:5])
	if compressedSizeWithHeader < HeaderSize {
		return nil, fmt.Errorf("corrupt block header: total size %d", compressedSizeWithHeader)
	}

	frame := make([]byte, compressedSizeWithHeader)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		return nil, fmt.Errorf("reading block payload: %w", err)
	}
	return DecompressBlock(frame)
}
