package internal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaRejectsNonObject(t *testing.T) {
	for _, body := range []string{`"text"`, `42`, `[1,2]`, `true`} {
		var m Meta
		err := json.Unmarshal([]byte(body), &m)
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrValidation), body)
	}
}

func TestMetaNullLeavesNil(t *testing.T) {
	var m Meta
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Nil(t, m)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestMetaVariants(t *testing.T) {
	body := `{"url":"https://example.com","count":3,"idle":true,"none":null,"tags":["a",1],"nested":{"tab":{"id":7}}}`
	var m Meta
	require.NoError(t, json.Unmarshal([]byte(body), &m))

	s, ok := m["url"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", s)

	n, ok := m["count"].AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	b, ok := m["idle"].AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.Equal(t, MetaNull, m["none"].Kind())

	list, ok := m["tags"].AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, MetaString, list[0].Kind())
	assert.Equal(t, MetaNumber, list[1].Kind())

	nested, ok := m["nested"].AsObject()
	require.True(t, ok)
	tab, ok := nested["tab"].AsObject()
	require.True(t, ok)
	id, _ := tab["id"].AsNumber()
	assert.Equal(t, 7.0, id)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
}

func TestMetaOf(t *testing.T) {
	m, err := metaOf(map[string]any{"sessionTopic": "Testing", "duration": int64(1800)})
	require.NoError(t, err)
	topic, _ := m["sessionTopic"].AsString()
	assert.Equal(t, "Testing", topic)
	d, _ := m["duration"].AsNumber()
	assert.Equal(t, 1800.0, d)

	_, err = metaOf(map[string]any{"bad": struct{}{}})
	assert.Error(t, err)
}
