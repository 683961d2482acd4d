// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		envSet bool
		want   string
	}{
		{name: "set", key: "XGC_TEST_STRING", value: "from-env", envSet: true, want: "from-env"},
		{name: "unset", key: "XGC_TEST_STRING_UNSET", want: "default"},
		{name: "empty", key: "XGC_TEST_STRING_EMPTY", value: "", envSet: true, want: "default"},
		{name: "whitespace kept", key: "XGC_TEST_STRING_WS", value: " x ", envSet: true, want: " x "},
		{name: "sensitive", key: "XGC_TEST_PASSWORD", value: "secret123", envSet: true, want: "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.want, ParseString(tt.key, "default"))
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid", value: "42", want: 42},
		{name: "padded", value: " 7 ", want: 7},
		{name: "negative", value: "-3", want: -3},
		{name: "invalid", value: "many", want: 5},
		{name: "float", value: "1.5", want: 5},
		{name: "blank", value: "  ", want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XGC_TEST_INT", tt.value)
			assert.Equal(t, tt.want, ParseInt("XGC_TEST_INT", 5))
		})
	}
	assert.Equal(t, 9, ParseInt("XGC_TEST_INT_UNSET", 9))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "seconds", value: "90s", want: 90 * time.Second},
		{name: "compound", value: "1h30m", want: 90 * time.Minute},
		{name: "bare number", value: "30", want: time.Minute},
		{name: "garbage", value: "soon", want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XGC_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, ParseDuration("XGC_TEST_DURATION", time.Minute))
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes", " Yes "} {
		t.Setenv("XGC_TEST_BOOL", v)
		assert.True(t, ParseBool("XGC_TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "no", "NO"} {
		t.Setenv("XGC_TEST_BOOL", v)
		assert.False(t, ParseBool("XGC_TEST_BOOL", true), v)
	}
	t.Setenv("XGC_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("XGC_TEST_BOOL", true))
	assert.False(t, ParseBool("XGC_TEST_BOOL", false))
}

func TestParseList(t *testing.T) {
	def := []string{"d"}
	assert.Equal(t, def, ParseList("XGC_TEST_LIST_UNSET", def))

	t.Setenv("XGC_TEST_LIST", " ")
	assert.Equal(t, def, ParseList("XGC_TEST_LIST", def))

	t.Setenv("XGC_TEST_LIST", " , ,")
	assert.Equal(t, def, ParseList("XGC_TEST_LIST", def))

	t.Setenv("XGC_TEST_LIST", "http://a/guide.xml, ,/srv/b.xml.gz,")
	assert.Equal(t, []string{"http://a/guide.xml", "/srv/b.xml.gz"}, ParseList("XGC_TEST_LIST", def))
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "***", displayValue("XGC_PROVIDER_TOKEN", "abc"))
	assert.NotContains(t, displayValue("XGC_PLAYLIST_URL", "http://u:p@provider/get.php"), "u:p")
	assert.Equal(t, "include", displayValue("XGC_FILTER_POLICY", "include"))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("XGC_TEST_TOKEN", "s3cr3t")
	assert.Equal(t, "http://p/get.php?token=s3cr3t", expandEnv("http://p/get.php?token=${XGC_TEST_TOKEN}"))
	assert.Equal(t, "http://p/?pw=a$b", expandEnv("http://p/?pw=a$b"), "bare dollar signs are literal")
	assert.Equal(t, "${XGC_TEST_UNSET_VAR}", expandEnv("${XGC_TEST_UNSET_VAR}"))
}
