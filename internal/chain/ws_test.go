package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfirmationSend(t *testing.T) {
	msg := []byte(`{
		"topic": "confirmation",
		"message": {
			"hash": "abc123",
			"amount": "1000000000000000000000000000000",
			"block": {
				"subtype": "send",
				"link_as_account": "nano_1destination"
			}
		}
	}`)
	conf, ok, err := ParseConfirmation(msg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nano_1destination", conf.Destination)
	assert.Equal(t, "ABC123", conf.Hash)
	assert.Equal(t, "1000000000000000000000000000000", conf.AmountRaw)
}

func TestParseConfirmationIgnoresOtherTopics(t *testing.T) {
	_, ok, err := ParseConfirmation([]byte(`{"topic": "telemetry", "message": {}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseConfirmationIgnoresNonSendBlocks(t *testing.T) {
	msg := []byte(`{
		"topic": "confirmation",
		"message": {
			"hash": "abc123",
			"block": {"subtype": "receive", "link_as_account": "nano_1x"}
		}
	}`)
	_, ok, err := ParseConfirmation(msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseConfirmationBadJSON(t *testing.T) {
	_, ok, err := ParseConfirmation([]byte(`{nope`))
	assert.Error(t, err)
	assert.False(t, ok)
}
