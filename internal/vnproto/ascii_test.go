package vnproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum8(t *testing.T) {
	t.Parallel()

	// Worked example from the interface control document.
	assert.Equal(t, byte(0x59), Checksum8([]byte("VNWRG,07,40")))
	assert.Equal(t, byte(0), Checksum8(nil))
}

func TestFormatCommand(t *testing.T) {
	t.Parallel()

	t.Run("with fields", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "$VNWRG,07,40*59\r\n", string(FormatCommand("VNWRG", "07", "40")))
	})

	t.Run("verb only", func(t *testing.T) {
		t.Parallel()
		cmd := string(FormatCommand("VNRRG"))
		assert.Equal(t, "$VNRRG*", cmd[:7])
		assert.Equal(t, "\r\n", cmd[len(cmd)-2:])
	})
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	t.Run("round-trips a formatted sentence", func(t *testing.T) {
		t.Parallel()
		verb, fields, err := ParseResponse(FormatCommand("VNRRG", "5", "115200"))
		require.NoError(t, err)
		assert.Equal(t, "VNRRG", verb)
		assert.Equal(t, []string{"5", "115200"}, fields)
	})

	t.Run("accepts line without trailing CRLF", func(t *testing.T) {
		t.Parallel()
		verb, _, err := ParseResponse([]byte("$VNWRG,07,40*59"))
		require.NoError(t, err)
		assert.Equal(t, "VNWRG", verb)
	})

	t.Run("rejects checksum mismatch", func(t *testing.T) {
		t.Parallel()
		_, _, err := ParseResponse([]byte("$VNWRG,07,40*5A\r\n"))
		assert.Error(t, err)
	})

	t.Run("rejects missing checksum", func(t *testing.T) {
		t.Parallel()
		_, _, err := ParseResponse([]byte("$VNWRG,07,40\r\n"))
		assert.Error(t, err)
	})

	t.Run("rejects non-sentence", func(t *testing.T) {
		t.Parallel()
		_, _, err := ParseResponse([]byte("garbage"))
		assert.Error(t, err)
	})

	t.Run("surfaces VNERR as DeviceError", func(t *testing.T) {
		t.Parallel()
		verb, _, err := ParseResponse(FormatCommand("VNERR", "8"))
		assert.Equal(t, VerbError, verb)

		var devErr *DeviceError
		require.ErrorAs(t, err, &devErr)
		assert.Equal(t, 8, devErr.Code)
		assert.Contains(t, devErr.Error(), "invalid register")
	})
}
