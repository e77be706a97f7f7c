// Package archive extracts gradable notebooks from uploaded zip bundles and
// compresses raw notebook sources for storage.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxNotebookBytes caps a single extracted notebook. Notebooks are JSON
// text; anything larger is a bomb, not homework.
const maxNotebookBytes int64 = 25 * 1024 * 1024

var (
	// ErrInvalidArchive signals that the zip archive could not be read.
	ErrInvalidArchive = errors.New("archive is invalid or corrupted")
	// ErrDangerousEntry indicates the archive contains disallowed content.
	ErrDangerousEntry = errors.New("archive contains disallowed entries")
	// ErrNoNotebooks is returned when no .ipynb entries survive filtering.
	ErrNoNotebooks = errors.New("archive contains no notebooks")
	// ErrEntryTooLarge is returned when a notebook exceeds the size cap.
	ErrEntryTooLarge = errors.New("archive entry exceeds the notebook size limit")
)

// NotebookFile is one extracted .ipynb entry. Name carries only the base
// name; directory layout inside the bundle is not meaningful.
type NotebookFile struct {
	Name    string
	Content []byte
}

// ExtractNotebooks returns every gradable notebook in the bundle, in archive
// order. Directories, macOS resource forks, checkpoint copies, and files
// without the .ipynb extension are skipped.
func ExtractNotebooks(data []byte) ([]NotebookFile, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ErrInvalidArchive
	}
	if len(reader.File) == 0 {
		return nil, ErrInvalidArchive
	}

	var notebooks []NotebookFile
	for _, file := range reader.File {
		if err := validateEntry(file); err != nil {
			return nil, err
		}
		if !gradableEntry(file) {
			continue
		}
		if file.UncompressedSize64 > uint64(maxNotebookBytes) {
			return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, file.Name)
		}
		content, err := readEntry(file)
		if err != nil {
			return nil, err
		}
		notebooks = append(notebooks, NotebookFile{
			Name:    filepath.Base(file.Name),
			Content: content,
		})
	}

	if len(notebooks) == 0 {
		return nil, ErrNoNotebooks
	}
	return notebooks, nil
}

func validateEntry(file *zip.File) error {
	cleaned := filepath.Clean(file.Name)
	if strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return fmt.Errorf("%w: %s", ErrDangerousEntry, file.Name)
	}
	if file.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: %s", ErrDangerousEntry, file.Name)
	}
	return nil
}

func gradableEntry(file *zip.File) bool {
	if file.FileInfo().IsDir() {
		return false
	}
	if strings.HasPrefix(file.Name, "__MACOSX") {
		return false
	}
	if strings.Contains(file.Name, ".ipynb_checkpoints") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(file.Name), ".ipynb")
}

func readEntry(file *zip.File) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, ErrInvalidArchive
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxNotebookBytes+1))
	if err != nil {
		return nil, ErrInvalidArchive
	}
	if int64(len(data)) > maxNotebookBytes {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, file.Name)
	}
	return data, nil
}
