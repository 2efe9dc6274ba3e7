package dataset

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint computes a content fingerprint over the uploaded inputs:
// a sha256 digest of each file's name and bytes, in fixed role order.
// Byte-identical uploads always produce the same fingerprint, so a
// Store can be reused without re-parsing; any changed input changes
// the digest.
func Fingerprint(in Inputs) string {
	h := sha256.New()
	for _, part := range []struct {
		role  string
		input *Input
	}{
		{KeyMaster, in.Master},
		{KeyAnalysis, in.Analysis},
		{KeyLinguists, in.Linguists},
	} {
		h.Write([]byte(part.role))
		h.Write([]byte{0})
		if part.input != nil {
			h.Write([]byte(part.input.Filename))
			h.Write([]byte{0})
			h.Write(part.input.Data)
		}
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
