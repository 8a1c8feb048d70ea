package common

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"resumechat/internal/errors"
)

// textExtensions are the file suffixes treated as plain text input
var textExtensions = []string{".txt", ".md", ".markdown", ".text"}

// ReadInputFiles validates each path and returns file contents in argument
// order. The first unreadable file aborts the whole read.
func ReadInputFiles(logger *errors.Logger, paths ...string) ([]string, error) {
	contents := make([]string, len(paths))

	for i, path := range paths {
		if err := checkInputPath(path); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", path), err)
		}

		if !looksLikeText(path) && logger != nil {
			logger.Warn("File may not be a text file", "filename", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
					fmt.Sprintf("File not found: %s", path), err)
			}
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot read file: %s", path), err)
		}
		contents[i] = string(data)
	}

	return contents, nil
}

// checkInputPath rejects empty paths, directories, and unreadable files
func checkInputPath(path string) error {
	if path == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", path, err)
	}
	return f.Close()
}

// looksLikeText reports whether the file carries a known text extension
func looksLikeText(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(textExtensions, ext)
}

// WriteOutputFile writes content to path, creating parent directories
func WriteOutputFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", path), err)
	}
	return nil
}
