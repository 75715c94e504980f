package model

import (
	"mime"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/gabriel-vasile/mimetype"
)

// Upload is one user-supplied image file.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// NewUpload builds an Upload, sniffing the MIME type from data when the
// declared one is missing or generic.
func NewUpload(name, declared string, data []byte) Upload {
	return Upload{Name: name, MIMEType: ResolveMIME(declared, data), Data: data}
}

// ResolveMIME returns the declared media type without parameters, or the
// type detected from data when nothing specific was declared.
func ResolveMIME(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		mt = strings.ToLower(mt)
		if mt != "" && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
	return mt
}

// IsImage reports whether the upload's MIME type is an image type.
func (u Upload) IsImage() bool {
	return strings.HasPrefix(u.MIMEType, "image/")
}

// Size is the byte length of the upload.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// Fingerprint returns a 64-bit xxhash of the image bytes, used to correlate
// log lines for the same upload across components.
func (u Upload) Fingerprint() uint64 {
	h := xxhash.NewS64(0)
	_, _ = h.Write(u.Data)
	return h.Sum64()
}
