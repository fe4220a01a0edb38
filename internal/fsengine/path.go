package fsengine

import (
	"strings"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/ferrors"
)

// tokenizePath splits a path into its components: the path must begin
// with '/', must not end with '/', must be non-empty, and every token
// must be non-empty and at most
// common.MaxFileName bytes. Consecutive slashes (empty tokens) are
// rejected.
func tokenizePath(path string) ([]string, error) {
	if len(path) == 0 {
		return nil, ferrors.ErrBadPath
	}
	if len(path) > common.MaxPathName {
		return nil, ferrors.ErrPathTooLong
	}
	if path[0] != '/' {
		return nil, ferrors.ErrBadPath
	}
	if path[len(path)-1] == '/' {
		return nil, ferrors.ErrBadPath
	}

	parts := strings.Split(path[1:], "/")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, ferrors.ErrBadPath
		}
		if len(p) > common.MaxFileName {
			return nil, ferrors.ErrNameTooLong
		}
		tokens = append(tokens, p)
	}
	return tokens, nil
}
