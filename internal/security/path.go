// Package security holds the cross-cutting defensive checks the
// orchestration HTTP surface applies to every request: input path
// containment, API key auth, and request body size limits.
package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"surveillance/internal/model"
)

// inputFilenameRe is the API-boundary filename contract from spec §6: no
// path separators, no leading/trailing dot, a bounded length.
var inputFilenameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

// ValidateFilename checks an API-supplied filename against the contract in
// spec §6, rejecting it before any filesystem resolution is even
// attempted. This is the 422-at-the-boundary check; ValidateInputPath is
// the deeper containment check run after.
func ValidateFilename(name string) error {
	if !inputFilenameRe.MatchString(name) {
		return fmt.Errorf("%w: filename %q does not match required pattern", model.ErrInputMalformed, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: filename %q must not begin or end with '.'", model.ErrInputMalformed, name)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, '\\') {
		return fmt.Errorf("%w: filename %q must not contain a path separator", model.ErrInputMalformed, name)
	}
	return nil
}

// ValidateInputPath resolves inputFile against inputDir and rejects any
// path that escapes inputDir, whether via "../" traversal, a Unix absolute
// path, a Windows-style absolute path (e.g. "C:\Windows\..."), or a
// symlink that resolves outside the directory. Ported from
// services/orchestrator-service/path_validation.py.
func ValidateInputPath(inputFile, inputDir string) (string, error) {
	resolvedDir, err := filepath.EvalSymlinks(inputDir)
	if err != nil {
		resolvedDir, err = filepath.Abs(inputDir)
		if err != nil {
			return "", fmt.Errorf("security: resolving input dir %q: %w", inputDir, err)
		}
	}

	isWindowsAbsolute := len(inputFile) >= 2 && inputFile[1] == ':' && isASCIILetter(inputFile[0])

	var candidate string
	if filepath.IsAbs(inputFile) || isWindowsAbsolute {
		candidate = inputFile
	} else {
		candidate = filepath.Join(resolvedDir, inputFile)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// The target may not exist yet (e.g. an output path); fall back to a
		// lexical resolution so containment can still be checked.
		resolved, err = filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("security: resolving %q: %w", inputFile, err)
		}
	}

	rel, err := filepath.Rel(resolvedDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		if isWindowsAbsolute {
			return "", fmt.Errorf(
				"security: path must be within input directory; Windows absolute paths outside it are not allowed (provided %q, resolved %q, allowed %q)",
				inputFile, resolved, resolvedDir,
			)
		}
		return "", fmt.Errorf(
			"security: path must be within input directory (provided %q, resolved %q, allowed %q)",
			inputFile, resolved, resolvedDir,
		)
	}

	return resolved, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
