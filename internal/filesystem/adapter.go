package filesystem

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// FileStats holds basic statistics about a file.
type FileStats struct {
	Size  int64
	IsDir bool
	Mode  os.FileMode
}

// FileSystemAdapter is the source provider and sink for patched files.
// Lines handed out by SplitLinesKeepEnds carry their own terminators, so
// JoinLines can write a file back byte for byte.
type FileSystemAdapter interface {
	ReadFileBytes(filePath string) ([]byte, error)
	WriteFileBytesAtomic(filePath string, content []byte, perm os.FileMode) error
	GetFileStats(filePath string) (*FileStats, error)
	IsValidUTF8(content []byte) bool
	SplitLinesKeepEnds(content []byte) []string
	JoinLines(lines []string) []byte
	DetectLineEnding(lines []string) string
	EvalSymlinks(path string) (string, error)
}

// CheckDirectoryIsWritable checks that path is a directory a temp file can be created in.
func CheckDirectoryIsWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s: %w", path, err)
		}
		return fmt.Errorf("could not stat path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// #nosec G404 -- rand is okay for temp file names
	tmpFilePath := filepath.Join(path, fmt.Sprintf(".line_patcher_write_check_%d_%d.tmp", time.Now().UnixNano(), rand.Intn(100000)))
	file, err := os.Create(tmpFilePath)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied to write in directory %s: %w", path, err)
		}
		return fmt.Errorf("error creating temporary file in %s: %w", path, err)
	}
	_ = file.Close()
	_ = os.Remove(tmpFilePath)
	return nil
}

// DefaultFileSystemAdapter implements FileSystemAdapter with the os package.
type DefaultFileSystemAdapter struct{}

// NewDefaultFileSystemAdapter creates a new DefaultFileSystemAdapter.
func NewDefaultFileSystemAdapter() *DefaultFileSystemAdapter {
	return &DefaultFileSystemAdapter{}
}

var _ FileSystemAdapter = (*DefaultFileSystemAdapter)(nil)

// ReadFileBytes reads the entire file.
func (fs *DefaultFileSystemAdapter) ReadFileBytes(filePath string) ([]byte, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading file: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to read file: %s: %w", filePath, err)
	}
	return content, nil
}

// IsValidUTF8 checks if the byte slice is valid UTF-8.
func (fs *DefaultFileSystemAdapter) IsValidUTF8(content []byte) bool {
	return utf8.Valid(content)
}

// WriteFileBytesAtomic writes content to a temp file in the same directory,
// renames it over filePath and then applies finalPerm.
func (fs *DefaultFileSystemAdapter) WriteFileBytesAtomic(filePath string, content []byte, finalPerm os.FileMode) error {
	dir := filepath.Dir(filePath)

	tempFile, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	// Harmless after a successful rename.
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFile.Name(), filePath, err)
	}
	if err := os.Chmod(filePath, finalPerm); err != nil {
		return fmt.Errorf("file written to %s, but failed to set final permissions to %o: %w", filePath, finalPerm, err)
	}
	return nil
}

// GetFileStats retrieves statistics for a given file.
func (fs *DefaultFileSystemAdapter) GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found for stats: %s: %w", filePath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied getting stats for file: %s: %w", filePath, err)
		}
		return nil, fmt.Errorf("failed to get file stats for %s: %w", filePath, err)
	}
	return &FileStats{
		Size:  info.Size(),
		IsDir: info.IsDir(),
		Mode:  info.Mode().Perm(),
	}, nil
}

// SplitLinesKeepEnds splits content after every "\n". Each line keeps its
// terminator ("\n" or "\r\n"); only the last line may have none.
//
//	"a\nb\n"   -> ["a\n", "b\n"]
//	"a\r\nb"   -> ["a\r\n", "b"]
//	""         -> []
func (fs *DefaultFileSystemAdapter) SplitLinesKeepEnds(content []byte) []string {
	if len(content) == 0 {
		return []string{}
	}
	lines := strings.SplitAfter(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines concatenates lines as they are. It is the inverse of SplitLinesKeepEnds.
func (fs *DefaultFileSystemAdapter) JoinLines(lines []string) []byte {
	return []byte(strings.Join(lines, ""))
}

// DetectLineEnding returns the terminator used by the first terminated line,
// defaulting to "\n".
func (fs *DefaultFileSystemAdapter) DetectLineEnding(lines []string) string {
	for _, l := range lines {
		if strings.HasSuffix(l, "\r\n") {
			return "\r\n"
		}
		if strings.HasSuffix(l, "\n") {
			return "\n"
		}
	}
	return "\n"
}

// EvalSymlinks evaluates symbolic links for the given path.
func (fs *DefaultFileSystemAdapter) EvalSymlinks(path string) (string, error) {
	resolvedPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate symlinks for %s: %w", path, err)
	}
	return resolvedPath, nil
}
