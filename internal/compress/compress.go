package compress

import (
	"encoding/base64"
	"fmt"
)

// Compress encodes and decodes stored payloads.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByName returns the codec registered under name. An empty name is nop so
// rows written before compression was configured still read back.
func ByName(name string) (Compress, error) {
	switch name {
	case "", "nop":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "brotli":
		return NewBrotli(), nil
	case "lz4":
		return NewLZ4(), nil
	default:
		return nil, fmt.Errorf("unknown compression: %s", name)
	}
}

// EncodeString encodes s for a TEXT column. Compressed bytes are base64 encoded,
// nop output is stored as is.
func EncodeString(c Compress, s string) (string, error) {
	if c.Name() == "nop" {
		return s, nil
	}

	data, err := c.Encode([]byte(s))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeString reverses EncodeString for the codec called name.
func DecodeString(name, s string) (string, error) {
	c, err := ByName(name)
	if err != nil {
		return "", err
	}
	if c.Name() == "nop" {
		return s, nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}

	out, err := c.Decode(data)
	if err != nil {
		return "", err
	}

	return string(out), nil
}
