package s3infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentKey_StripsDirectories(t *testing.T) {
	key := attachmentKey("T1", "../../etc/passwd")
	assert.True(t, strings.HasPrefix(key, "support/T1/"))
	assert.True(t, strings.HasSuffix(key, "-passwd"))
	assert.NotContains(t, strings.TrimPrefix(key, "support/T1/"), "/")

	key = attachmentKey("T1", `C:\Users\me\receipt.pdf`)
	assert.True(t, strings.HasSuffix(key, "-receipt.pdf"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", detectContentType("a.JPG"))
	assert.Equal(t, "image/png", detectContentType("a.png"))
	assert.Equal(t, "application/pdf", detectContentType("a.pdf"))
	assert.Equal(t, "application/octet-stream", detectContentType("a.bin"))
}
