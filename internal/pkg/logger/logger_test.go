package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	SetLevel(INFO)
	SetRedactPII(true)
	return buf
}

func TestInfoWritesJSON(t *testing.T) {
	buf := capture(t)

	Info("withdrawal requested", "promoter_id", "p1", "amount", "100.00")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "withdrawal requested", entry["msg"])
	assert.Equal(t, "p1", entry["promoter_id"])
	assert.Equal(t, "100.00", entry["amount"])
}

func TestLevelFilter(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)
	defer SetLevel(INFO)

	Info("dropped")
	assert.Zero(t, buf.Len())

	Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRedaction(t *testing.T) {
	buf := capture(t)

	Info("payout", "email", "john.doe@example.com", "account_number", "123456789", "note", "ping ab@example.com")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "*****6789", entry["account_number"])
	assert.Equal(t, "ping ***@example.com", entry["note"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel(""))
}
