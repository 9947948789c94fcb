package vm

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"strings"
)

const (
	eocdSignature        = 0x06054b50
	centralDirSignature  = 0x02014b50
	localHeaderSignature = 0x04034b50
)

// ZipEntry is one central-directory record from a JAR/ZIP archive: the
// bookkeeping needed to later seek to and decompress its bytes, without
// holding the decompressed payload itself.
type ZipEntry struct {
	Name              string
	CompressionMethod uint16
	CompressedSize    uint32
	UncompressedSize  uint32
	LocalHeaderOffset uint32
}

// ZipArchive is a parsed JAR/ZIP central directory over a byte buffer the
// caller keeps alive; ReadEntry re-reads from that buffer on demand
// rather than eagerly inflating every entry at open time.
type ZipArchive struct {
	data    []byte
	entries []ZipEntry
}

func readU16LE(data []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(data[offset:])
}

func readU32LE(data []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset:])
}

// OpenZip parses the central directory of a JAR/ZIP byte buffer,
// locating it via a backward scan for the end-of-central-directory
// record (the only reliable anchor, since ZIP is trailer-indexed).
func OpenZip(data []byte) (*ZipArchive, *Error) {
	eocdOffset, err := findEOCD(data)
	if err != nil {
		return nil, err
	}

	cdOffset := int(readU32LE(data, eocdOffset+16))
	cdEntryCount := int(readU16LE(data, eocdOffset+10))

	entries := make([]ZipEntry, 0, cdEntryCount)
	pos := cdOffset

	for i := 0; i < cdEntryCount; i++ {
		if pos+46 > len(data) {
			break
		}
		sig := readU32LE(data, pos)
		if sig != centralDirSignature {
			break
		}

		compressionMethod := readU16LE(data, pos+10)
		compressedSize := readU32LE(data, pos+20)
		uncompressedSize := readU32LE(data, pos+24)
		nameLen := int(readU16LE(data, pos+28))
		extraLen := int(readU16LE(data, pos+30))
		commentLen := int(readU16LE(data, pos+32))
		localHeaderOffset := readU32LE(data, pos+42)

		if pos+46+nameLen > len(data) {
			break
		}
		name := string(data[pos+46 : pos+46+nameLen])

		entries = append(entries, ZipEntry{
			Name:              name,
			CompressionMethod: compressionMethod,
			CompressedSize:    compressedSize,
			UncompressedSize:  uncompressedSize,
			LocalHeaderOffset: localHeaderOffset,
		})

		pos += 46 + nameLen + extraLen + commentLen
	}

	return &ZipArchive{data: data, entries: entries}, nil
}

// findEOCD scans backward from the end of the buffer for the EOCD
// signature, bounded by the maximum possible trailing comment length
// (65535 bytes) so a buffer with no EOCD at all fails fast.
func findEOCD(data []byte) (int, *Error) {
	if len(data) < 22 {
		return 0, ioError("too small for ZIP")
	}

	searchStart := 0
	if len(data) > 22+65535 {
		searchStart = len(data) - 22 - 65535
	}

	for i := len(data) - 22; i >= searchStart; i-- {
		if readU32LE(data, i) == eocdSignature {
			return i, nil
		}
	}

	return 0, ioError("EOCD not found, not a valid ZIP/JAR")
}

func (z *ZipArchive) Entries() []ZipEntry {
	return z.entries
}

// ReadEntry seeks to an entry's local header, validates its signature,
// and returns its decompressed bytes. Only stored (method 0) and DEFLATE
// (method 8) entries are supported, matching the two methods `jar`/`zip`
// actually produce for class files.
func (z *ZipArchive) ReadEntry(entry ZipEntry) ([]byte, *Error) {
	offset := int(entry.LocalHeaderOffset)
	if offset+30 > len(z.data) {
		return nil, ioError("invalid local header offset")
	}

	sig := readU32LE(z.data, offset)
	if sig != localHeaderSignature {
		return nil, ioError("bad local header signature")
	}

	nameLen := int(readU16LE(z.data, offset+26))
	extraLen := int(readU16LE(z.data, offset+28))
	dataStart := offset + 30 + nameLen + extraLen
	dataEnd := dataStart + int(entry.CompressedSize)

	if dataEnd > len(z.data) {
		return nil, ioError("entry data beyond end of file")
	}

	compressed := z.data[dataStart:dataEnd]

	switch entry.CompressionMethod {
	case 0:
		out := make([]byte, len(compressed))
		copy(out, compressed)
		return out, nil
	case 8:
		r := flate.NewReader(bytes.NewReader(compressed))
		defer r.Close()
		out, readErr := io.ReadAll(r)
		if readErr != nil {
			return nil, ioError("deflate error: %v", readErr)
		}
		return out, nil
	default:
		return nil, ioError("unsupported ZIP compression method: %d", entry.CompressionMethod)
	}
}

// ClassEntries returns the entries whose name ends in .class, in any
// directory, skipping any path that contains META-INF.
func (z *ZipArchive) ClassEntries() []ZipEntry {
	var out []ZipEntry
	for _, e := range z.entries {
		if strings.HasSuffix(e.Name, ".class") && !strings.Contains(e.Name, "META-INF") {
			out = append(out, e)
		}
	}
	return out
}
