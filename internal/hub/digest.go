package hub

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// GitBlobSHA1 returns the git object id of content, the "oid" the hub reports
// for regular (non-LFS) files.
func GitBlobSHA1(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256Hex returns the LFS object id of content.
func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SameContent reports whether content matches the remote entry. LFS entries
// compare by sha256, regular entries by git blob sha1.
func SameContent(remote RepoFile, content []byte) bool {
	if remote.LFS != nil && remote.LFS.OID != "" {
		return remote.LFS.OID == SHA256Hex(content) && remote.LFS.Size == int64(len(content))
	}
	return remote.OID == GitBlobSHA1(content)
}
