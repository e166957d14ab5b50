package relationship

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArrayClean(t *testing.T) {
	raw, err := ExtractJSONArray(`[{"type": "SUBSET"}]`)
	require.NoError(t, err)

	var items []map[string]string
	require.NoError(t, json.Unmarshal(raw, &items))
	assert.Equal(t, "SUBSET", items[0]["type"])
}

func TestExtractJSONArrayCodeFence(t *testing.T) {
	text := "```json\n[{\"type\": \"PARTITION\"}]\n```"
	raw, err := ExtractJSONArray(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type": "PARTITION"}]`, string(raw))
}

func TestExtractJSONArrayEmbeddedInProse(t *testing.T) {
	text := `Here are the constraints I found:

[{"type": "THRESHOLD", "tickers_ascending": ["A", "B"]}]

Let me know if you need more.`
	raw, err := ExtractJSONArray(text)
	require.NoError(t, err)

	var items []proposal
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, []string{"A", "B"}, items[0].TickersAscending)
}

func TestExtractJSONArrayEmpty(t *testing.T) {
	raw, err := ExtractJSONArray("[]")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestExtractJSONArrayGarbage(t *testing.T) {
	_, err := ExtractJSONArray("I could not find any constraints.")
	assert.Error(t, err)

	_, err = ExtractJSONArray(`{"type": "SUBSET"}`)
	assert.Error(t, err, "a bare object is not an array")
}
