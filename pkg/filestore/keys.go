package filestore

import (
	"fmt"
	"path"
	"strings"
)

// ErrInvalidKey is returned by blob stores for keys that are empty, absolute
// or escape the store root. It matches ErrValidation.
var ErrInvalidKey = fmt.Errorf("%w: invalid blob key", ErrValidation)

// CleanKey normalizes a slash separated blob key and rejects keys that would
// resolve outside the store.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q contains a parent segment", ErrInvalidKey, key)
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
