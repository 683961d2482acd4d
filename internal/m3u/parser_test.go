// SPDX-License-Identifier: MIT

package m3u

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepro(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-chno="1" tvg-id="1:0:1:300:7:85:C00000:0:0:0:" tvg-logo="/logos/1.png?v=1767922888" group-title="Last Scanned" tvg-name=".",.
http://10.10.55.64/web/stream.m3u?ref=1%3A0%3A1%3A300%3A7%3A85%3AC00000%3A0%3A0%3A0%3A&name=.
`
	pl := ParseString(content)
	require.Len(t, pl.Entries, 1)
	ch := pl.Entries[0]
	assert.Equal(t, "1:0:1:300:7:85:C00000:0:0:0:", ch.TvgID)
	assert.Equal(t, "Last Scanned", ch.Group)
	assert.Equal(t, "1", ch.Number)
	assert.Equal(t, ".", ch.Name)
	assert.Equal(t, 2, ch.Line)
}

func TestParse_PairsAndMalformed(t *testing.T) {
	content := "\uFEFF#EXTM3U x-tvg-url=\"http://epg.example/guide.xml.gz\"\n" +
		"#EXTINF:-1 tvg-id=\"MBC.1.ae\" group-title=\"Arabic\",MBC 1 HD\n" +
		"#EXTVLCOPT:http-user-agent=Mozilla\n" +
		"http://stream.example/mbc1\n" +
		"#EXTINF:-1 tvg-id=\"Lost.ae\",Header Without URL\n" +
		"#EXTINF:-1,Dubai One\n" +
		"\n" +
		"http://stream.example/dubai\n" +
		"http://stream.example/orphan\n" +
		"#EXTINF:-1,Trailing Header\n"

	pl, err := Parse(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, `#EXTM3U x-tvg-url="http://epg.example/guide.xml.gz"`, pl.Header)
	require.Len(t, pl.Entries, 2)
	assert.Equal(t, 3, pl.Malformed)

	mbc := pl.Entries[0]
	assert.Equal(t, "MBC 1 HD", mbc.Name)
	assert.Equal(t, "MBC.1.ae", mbc.TvgID)
	assert.Equal(t, "Arabic", mbc.Group)
	assert.Equal(t, []string{"#EXTVLCOPT:http-user-agent=Mozilla"}, mbc.Extra)
	assert.Equal(t, "http://stream.example/mbc1", mbc.URL)

	dubai := pl.Entries[1]
	assert.Equal(t, "Dubai One", dubai.Name)
	assert.Empty(t, dubai.TvgID)
	assert.Equal(t, "http://stream.example/dubai", dubai.URL)
}

func TestParse_NameFallsBackToTvgName(t *testing.T) {
	pl := ParseString("#EXTINF:-1 tvg-name=\"Sharjah TV\",\nhttp://s/1\n")
	require.Len(t, pl.Entries, 1)
	assert.Equal(t, "Sharjah TV", pl.Entries[0].Name)
}

func TestParse_CommaInsideAttribute(t *testing.T) {
	pl := ParseString("#EXTINF:-1 group-title=\"News, Arabic\",Al Arabiya, Live\nhttp://s/1\n")
	require.Len(t, pl.Entries, 1)
	assert.Equal(t, "News, Arabic", pl.Entries[0].Group)
	assert.Equal(t, "Al Arabiya, Live", pl.Entries[0].Name)
}

func TestEntryAttr(t *testing.T) {
	e := Entry{Header: `#EXTINF:-1 TVG-ID="abc" tvg-logo="x.png",Name`}
	v, ok := e.Attr("tvg-id")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = e.Attr("group-title")
	assert.False(t, ok)
}

func TestSetAttr(t *testing.T) {
	tests := []struct {
		name   string
		header string
		key    string
		value  string
		want   string
	}{
		{
			name:   "replace existing",
			header: `#EXTINF:-1 tvg-id="MBC1.ae" group-title="AR",MBC 1`,
			key:    "tvg-id",
			value:  "MBC.1.ae",
			want:   `#EXTINF:-1 tvg-id="MBC.1.ae" group-title="AR",MBC 1`,
		},
		{
			name:   "insert after duration",
			header: `#EXTINF:-1 group-title="AR",MBC 1`,
			key:    "tvg-id",
			value:  "MBC.1.ae",
			want:   `#EXTINF:-1 tvg-id="MBC.1.ae" group-title="AR",MBC 1`,
		},
		{
			name:   "insert without attributes",
			header: `#EXTINF:-1,MBC 1`,
			key:    "tvg-id",
			value:  "MBC.1.ae",
			want:   `#EXTINF:-1 tvg-id="MBC.1.ae",MBC 1`,
		},
		{
			name:   "quotes stripped from value",
			header: `#EXTINF:-1,X`,
			key:    "tvg-id",
			value:  `a"b`,
			want:   `#EXTINF:-1 tvg-id="ab",X`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SetAttr(tt.header, tt.key, tt.value)
			assert.Equal(t, tt.want, got)

			e := parseHeader(got)
			assert.Equal(t, strings.ReplaceAll(tt.value, `"`, ""), e.TvgID)
		})
	}
}

func TestSetHeaderAttr(t *testing.T) {
	assert.Equal(t, `#EXTM3U x-tvg-url="http://g/new.xml"`, SetHeaderAttr("", "x-tvg-url", "http://g/new.xml"))
	assert.Equal(t,
		`#EXTM3U url-tvg="a" x-tvg-url="http://g/new.xml"`,
		SetHeaderAttr(`#EXTM3U url-tvg="a" x-tvg-url="http://old"`, "x-tvg-url", "http://g/new.xml"))
	assert.Equal(t, `#EXTM3U refresh="3600" x-tvg-url="b"`, SetHeaderAttr(`#EXTM3U refresh="3600" `, "x-tvg-url", "b"))
}
