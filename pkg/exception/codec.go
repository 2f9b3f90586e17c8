package exception

import "github.com/yanun0323/errors"

// Codec errors
var (
	ErrCodecInvalidMagic       = errors.New("codec: invalid magic")
	ErrCodecUnsupportedVersion = errors.New("codec: unsupported record version")
	ErrCodecInvalidHeaderSize  = errors.New("codec: invalid header size")
	ErrCodecChecksumMismatch   = errors.New("codec: checksum mismatch")
	ErrCodecBodyTooLarge       = errors.New("codec: record body too large")
	ErrCodecCorruptBody        = errors.New("codec: corrupt record body")
	ErrCodecInvalidValue       = errors.New("codec: invalid field value")
	ErrSentinelNotPersistable  = errors.New("codec: sentinel cannot be persisted")
)
