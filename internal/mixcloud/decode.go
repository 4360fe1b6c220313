package mixcloud

import (
	"encoding/base64"
	"fmt"
	"net/url"
)

// streamKey is the fixed key the remote XORs into its stream URLs after
// base64 encoding them.
const streamKey = "IFYOUWANTTHEARTISTSTOGETPAIDDONOTDOWNLOADFROMMIXCLOUD"

// DecodeStreamURL turns an obfuscated streamInfo.url value into the real
// media URL: base64-decode, then XOR with the fixed key repeated cyclically.
// The result must parse as an absolute http(s) URL.
func DecodeStreamURL(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecoderError{Encoded: encoded, Err: fmt.Errorf("base64: %w", err)}
	}
	decoded := make([]byte, len(raw))
	for i, b := range raw {
		decoded[i] = b ^ streamKey[i%len(streamKey)]
	}
	s := string(decoded)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("not an absolute http url: %q", s)
		}
		return "", &DecoderError{Encoded: encoded, Err: err}
	}
	return s, nil
}
