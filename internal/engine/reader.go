package engine

import (
	"fmt"
	"os"

	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
)

// Reader loads battle log files with basic sanity checks.
type Reader struct {
	maxSizeMB int
}

// NewReader creates a reader that refuses files larger than maxSizeMB.
// A non-positive limit disables the size check.
func NewReader(maxSizeMB int) *Reader {
	return &Reader{maxSizeMB: maxSizeMB}
}

// Read returns the full contents of the file at path.
// Stat, permission and read problems are ErrIO; an oversized or empty file
// is ErrInvalidLog.
func (r *Reader) Read(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, internalerrors.IOError("stat", path, err)
	}

	// Check file permissions
	if fileInfo.Mode().Perm()&0400 == 0 {
		return nil, internalerrors.IOError("read", path, fmt.Errorf("file is not readable"))
	}

	// Check file size
	if r.maxSizeMB > 0 {
		maxBytes := int64(r.maxSizeMB) * 1024 * 1024
		if fileInfo.Size() > maxBytes {
			return nil, internalerrors.InvalidLogf("file exceeds maximum size of %dMB (size: %.2fMB)",
				r.maxSizeMB, float64(fileInfo.Size())/1024/1024)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, internalerrors.IOError("read", path, err)
	}

	if err := r.Validate(content); err != nil {
		return nil, err
	}
	return content, nil
}

// Validate performs the checks that do not need a parser.
func (r *Reader) Validate(content []byte) error {
	if len(content) == 0 {
		return internalerrors.InvalidLogf("file is empty")
	}
	return nil
}
