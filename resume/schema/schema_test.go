package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyHasAllSections(t *testing.T) {
	doc := Empty()
	require.Contains(t, doc, "basics")
	for _, s := range Sections {
		assert.Contains(t, doc, s)
		assert.Equal(t, []any{}, doc[s])
	}
	basics := doc["basics"].(map[string]any)
	assert.Contains(t, basics, "location")
	assert.True(t, IsEmpty(doc))
}

func TestEmptyReturnsIndependentCopies(t *testing.T) {
	a := Empty()
	b := Empty()
	a["basics"].(map[string]any)["name"] = "Ada"
	assert.Equal(t, "", b.Name())
}

func TestMergeKeepsNameAndFillsSections(t *testing.T) {
	doc := Merge(map[string]any{
		"basics": map[string]any{"name": "Ada"},
	})
	assert.Equal(t, "Ada", doc.Name())
	for _, s := range Sections {
		assert.Contains(t, doc, s)
	}
	assert.False(t, IsEmpty(doc))
}

func TestMergeKeepsUnknownKeysAndSkipsNil(t *testing.T) {
	doc := Merge(map[string]any{
		"meta":      map[string]any{"version": "1"},
		"education": nil,
	})
	assert.Contains(t, doc, "meta")
	assert.Equal(t, []any{}, doc["education"])
}

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(`{"basics":{"name":"Ada"},"work":[{"name":"ACME"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Name())

	_, err = Decode([]byte(`"just a string"`))
	assert.Error(t, err)
	_, err = Decode([]byte(`null`))
	assert.Error(t, err)
}
