package torrent_test

import (
	"testing"

	"github.com/dbytex91/addonx/internal/torrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hash = "c9e15763f722f23e98a29decdfae341b98d53056"

func TestParseMagnetURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantHash  string
		wantName  string
		trackers  int
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "hex",
			uri:       "magnet:?xt=urn:btih:" + hash + "&dn=Big+Buck+Bunny&tr=udp%3A%2F%2Ftracker.example.org%3A1337",
			wantHash:  hash,
			wantName:  "Big Buck Bunny",
			trackers:  1,
			assertErr: assert.NoError,
		},
		{
			name:      "uppercase hex",
			uri:       "magnet:?xt=urn:btih:C9E15763F722F23E98A29DECDFAE341B98D53056",
			wantHash:  hash,
			assertErr: assert.NoError,
		},
		{
			name:      "base32",
			uri:       "magnet:?xt=urn:btih:ZHQVOY7XELZD5GFCTXWN7LRUDOMNKMCW",
			wantHash:  hash,
			assertErr: assert.NoError,
		},
		{
			name:      "v2 multihash",
			uri:       "magnet:?xt=urn:btmh:1220" + hash + "000000000000000000000000",
			wantHash:  hash,
			assertErr: assert.NoError,
		},
		{
			name:      "hybrid prefers v1",
			uri:       "magnet:?xt=urn:btmh:1220" + "ff" + hash[2:] + "000000000000000000000000&xt=urn:btih:" + hash,
			wantHash:  hash,
			assertErr: assert.NoError,
		},
		{
			name:      "not a magnet",
			uri:       "https://example.com/file.torrent",
			assertErr: assert.Error,
		},
		{
			name:      "no info hash",
			uri:       "magnet:?dn=nothing",
			assertErr: assert.Error,
		},
		{
			name:      "short hash",
			uri:       "magnet:?xt=urn:btih:abcdef",
			assertErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := torrent.ParseMagnetURI(tt.uri)
			if !tt.assertErr(t, err) || err != nil {
				assert.ErrorIs(t, err, torrent.ErrInvalidMagnet)
				return
			}
			assert.Equal(t, tt.wantHash, m.InfoHashStr())
			assert.Equal(t, tt.wantName, m.Name)
			assert.Len(t, m.Trackers, tt.trackers)
		})
	}
}

func TestNewMagnet(t *testing.T) {
	m, err := torrent.NewMagnet(hash, "Movie", []string{"tracker:udp://tracker.example.org:1337", "dht:" + hash})
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:"+hash+"&dn=Movie&tr=udp%3A%2F%2Ftracker.example.org%3A1337", m.String())

	parsed, err := torrent.ParseMagnetURI(m.String())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)

	_, err = torrent.NewMagnet("nothex", "", nil)
	assert.ErrorIs(t, err, torrent.ErrInvalidMagnet)
}

func TestIsInfoHash(t *testing.T) {
	assert.True(t, torrent.IsInfoHash(hash))
	assert.False(t, torrent.IsInfoHash(hash[:39]))
	assert.False(t, torrent.IsInfoHash("z"+hash[1:]))
}
