// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// maxSegmentRunes caps owner and model name length. Hub repository names are
// limited to 96 characters per segment.
const maxSegmentRunes = 96

// maxRevisionLength covers branch names, tags, and full commit hashes.
const maxRevisionLength = 128

var (
	ErrEmptyRepoID     = errors.New("validate: empty repository id")
	ErrInvalidRepoID   = errors.New("validate: invalid repository id")
	ErrInvalidTask     = errors.New("validate: invalid task name")
	ErrInvalidRevision = errors.New("validate: invalid revision")
)

var (
	segmentPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	taskPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	revisionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// NormalizeRepoID trims and NFC-normalizes a repository identifier and
// verifies it is safe to embed in request paths and storage keys. The
// returned ID is either "name" or "owner/name".
func NormalizeRepoID(s string) (string, error) {
	// Normalize Unicode to NFC form (composed form) before processing
	s = unorm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", ErrEmptyRepoID
	}
	if isPathHostile(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepoID, s)
	}

	segments := strings.Split(s, "/")
	if len(segments) > 2 {
		return "", fmt.Errorf("%w: %q has more than two path segments", ErrInvalidRepoID, s)
	}
	for _, seg := range segments {
		if err := checkSegment(seg); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidRepoID, s, err)
		}
	}
	return s, nil
}

// SplitRepoID returns the owner and name parts of a repository identifier.
// Owner is empty for bare model names such as "gpt2".
func SplitRepoID(s string) (owner, name string, err error) {
	id, err := NormalizeRepoID(s)
	if err != nil {
		return "", "", err
	}
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i], id[i+1:], nil
	}
	return "", id, nil
}

// Task verifies a pipeline task name is lowercase kebab-case.
func Task(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTask)
	}
	if !taskPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidTask, s)
	}
	return nil
}

// Revision checks a git revision reference (branch, tag, or commit hash)
// before it is embedded in a request path.
func Revision(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRevision)
	}
	if len(s) > maxRevisionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRevision, maxRevisionLength)
	}
	if strings.Contains(s, "..") || !revisionPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidRevision, s)
	}
	return nil
}

func checkSegment(seg string) error {
	if seg == "" {
		return errors.New("empty segment")
	}
	if len([]rune(seg)) > maxSegmentRunes {
		return fmt.Errorf("segment exceeds %d characters", maxSegmentRunes)
	}
	if strings.HasSuffix(seg, ".") {
		return errors.New("segment ends with a dot")
	}
	if !segmentPattern.MatchString(seg) {
		return errors.New("segment contains disallowed characters")
	}
	return nil
}

// isPathHostile rejects identifiers that could alter the request path after
// decoding. It decodes the input multiple times to catch double-encoding,
// applies Unicode normalization, and searches for dangerous sequences
// including NULs.
func isPathHostile(s string) bool {
	decoded := s
	// Attempt multiple decode passes to catch double/triple encodings
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	dangerSubstrings := []string{
		"..",        // parent traversal
		"..\\",      // windows-style backslash
		"%00",       // encoded NUL
		"\x00",      // literal NUL
		"%c0%ae",    // overlong UTF-8 for '.'
		"%e0%80%ae", // another overlong variant
	}
	for _, pat := range dangerSubstrings {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	// Normalize and check again for dot-dot
	normalized := strings.ToLower(unorm.NFC.String(decoded))
	return strings.Contains(normalized, "..") || strings.Contains(normalized, "\\")
}
