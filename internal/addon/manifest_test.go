package addon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestResources(t *testing.T) {
	raw := `{
		"id": "org.example",
		"name": "Example",
		"version": "1.0.0",
		"types": ["movie", "series"],
		"idPrefixes": ["tt"],
		"resources": [
			"stream",
			{"name": "subtitles", "types": ["series"], "idPrefixes": ["kitsu"]}
		]
	}`

	manifest := &Manifest{}
	require.NoError(t, json.Unmarshal([]byte(raw), manifest))
	assert.True(t, manifest.HasResources())

	streams := manifest.Resource(ResourceStream)
	require.Len(t, streams, 1)
	assert.Equal(t, []ContentType{ContentTypeMovie, ContentTypeSeries}, streams[0].Types)
	assert.Equal(t, []string{"tt"}, streams[0].IDPrefixes)

	subtitles := manifest.Resource(ResourceSubtitles)
	require.Len(t, subtitles, 1)
	assert.Equal(t, []string{"kitsu"}, subtitles[0].IDPrefixes)

	encoded, err := json.Marshal(manifest.ResourceItems)
	require.NoError(t, err)
	assert.JSONEq(t, `["stream",{"name":"subtitles","types":["series"],"idPrefixes":["kitsu"]}]`, string(encoded))

	var empty *Manifest
	assert.False(t, empty.HasResources())
	assert.Nil(t, empty.Resource(ResourceStream))
}
