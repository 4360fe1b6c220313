package mixcloud

import (
	"encoding/base64"
	"testing"
)

func encode(plain string) string {
	b := []byte(plain)
	for i := range b {
		b[i] ^= streamKey[i%len(streamKey)]
	}
	return base64.StdEncoding.EncodeToString(b)
}

func TestDecodeStreamURL(t *testing.T) {
	urls := []string{
		"https://stream11.example.com/c/m4a/64/1/a/b/c/mix.m4a",
		"http://host/short.mp3",
		"https://host/a?sig=abc123",
	}
	for _, u := range urls {
		got, err := DecodeStreamURL(encode(u))
		if err != nil {
			t.Errorf("DecodeStreamURL round trip of %q failed: %v", u, err)
			continue
		}
		if got != u {
			t.Errorf("DecodeStreamURL = %q, want %q", got, u)
		}
	}
}

func TestDecodeStreamURLErrors(t *testing.T) {
	tests := []struct{ name, encoded string }{
		{"not base64", "!!! not base64 !!!"},
		{"decodes to garbage", base64.StdEncoding.EncodeToString([]byte("garbage"))},
		{"empty", ""},
	}
	for _, tt := range tests {
		if _, err := DecodeStreamURL(tt.encoded); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}
