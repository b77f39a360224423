package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs(t *testing.T) {
	content := strings.Repeat("Tariffs on steel raise input costs for automakers.\n", 40)

	for _, name := range []string{"nop", "gzip", "brotli", "lz4"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			encoded, err := EncodeString(c, content)
			require.NoError(t, err)
			if name != "nop" {
				assert.NotEqual(t, content, encoded)
				assert.Less(t, len(encoded), len(content))
			}

			decoded, err := DecodeString(name, encoded)
			require.NoError(t, err)
			assert.Equal(t, content, decoded)
		})
	}
}

func TestByName_Empty(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "nop", c.Name())
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("zstd")
	assert.Error(t, err)
}

func TestDecodeString_Corrupt(t *testing.T) {
	_, err := DecodeString("gzip", "not base64 !!")
	assert.Error(t, err)
}
