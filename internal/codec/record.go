package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"tickrec/pkg/exception"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 24
	recordChecksumSize        = 4
	maxBodyLen                = uint64(^uint32(0))
)

var (
	recordMagic = [4]byte{'T', 'C', 'K', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

type recordHeader struct {
	flags      uint16
	fieldCount uint16
	bodyLen    uint32
	receivedTS int64
}

func encodeHeader(dst []byte, h recordHeader) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], h.flags)
	binary.LittleEndian.PutUint16(dst[10:12], h.fieldCount)
	binary.LittleEndian.PutUint32(dst[12:16], h.bodyLen)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(h.receivedTS))
}

func decodeHeader(src []byte) (recordHeader, error) {
	if len(src) < recordHeaderSize {
		return recordHeader{}, exception.ErrCodecInvalidHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return recordHeader{}, exception.ErrCodecInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return recordHeader{}, exception.ErrCodecUnsupportedVersion
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return recordHeader{}, exception.ErrCodecInvalidHeaderSize
	}
	return recordHeader{
		flags:      binary.LittleEndian.Uint16(src[8:10]),
		fieldCount: binary.LittleEndian.Uint16(src[10:12]),
		bodyLen:    binary.LittleEndian.Uint32(src[12:16]),
		receivedTS: int64(binary.LittleEndian.Uint64(src[16:24])),
	}, nil
}

func checksum(header []byte, body []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, body)
}
