package depgraph

import (
	"fmt"
	"os"
)

// Signature is a cheap fingerprint of a file's on-disk state.
// Two signatures are equal iff size, mtime and inode all match.
type Signature struct {
	Size  uint64  `json:"size"`
	MTime float64 `json:"mtime"` // seconds since epoch
	Inode uint64  `json:"inode"` // 0 where the platform has no inodes
}

// SignatureOf stats path and returns its signature.
// A missing file yields an error wrapping fs.ErrNotExist.
func SignatureOf(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return SignatureFromInfo(info), nil
}

// SignatureFromInfo builds a signature from already-fetched file info.
func SignatureFromInfo(info os.FileInfo) Signature {
	return Signature{
		Size:  uint64(info.Size()),
		MTime: float64(info.ModTime().UnixNano()) / 1e9,
		Inode: inodeOf(info),
	}
}

// Equal reports whether two signatures describe the same file state.
func (s Signature) Equal(other Signature) bool {
	return s == other
}

// IsZero reports whether s is the zero signature.
func (s Signature) IsZero() bool {
	return s == Signature{}
}
