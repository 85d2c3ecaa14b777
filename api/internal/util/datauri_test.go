package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0xfe, 0x01}
	std := base64.StdEncoding.EncodeToString(raw)
	url := base64.URLEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		in       string
		wantMIME string
	}{
		{name: "plain", in: std},
		{name: "url safe", in: url},
		{name: "data url", in: MakeDataURL("image/jpeg", std), wantMIME: "image/jpeg"},
		{name: "padded with spaces", in: "  " + std + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mime, err := DecodeBase64MaybeDataURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}

	_, _, err := DecodeBase64MaybeDataURL("not base64 at all!!!")
	assert.Error(t, err)
}

func TestMakeDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AAAA", MakeDataURL("image/png", "AAAA"))
}
