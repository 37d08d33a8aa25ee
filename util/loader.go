package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-crop/images"
)

// DefaultExtensions are the file extensions considered when none are configured.
var DefaultExtensions = []string{"jpg", "jpeg", "png"}

// ImageFile represents an image file found in an input directory.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file, used as the output file name.
	Name string
}

// Open opens the image file for reading.
func (f ImageFile) Open() (*os.File, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, images.NoFile("open", f.Path, err)
	}
	return file, nil
}

// LoadDirectoryImageFiles lists the image files of a directory.
//
// Files whose extension exactly matches one of extensions are kept. Symlinks are
// followed. Directories and special files (pipes, sockets, devices) are skipped.
// Matching is case-sensitive, so "photo.PNG" is skipped when only "png" is allowed.
// A directory that does not exist is created and yields no files.
//
// Arguments:
// - dir: Directory path containing image files.
// - extensions: Allowed extensions without the dot. Empty selects DefaultExtensions.
//
// Returns:
// - []ImageFile: The matching files sorted by name.
// - error: Error if the directory cannot be read or created.
func LoadDirectoryImageFiles(dir string, extensions []string) ([]ImageFile, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, images.NoFile("mkdir", dir, mkErr)
		}
		return []ImageFile{}, nil
	}
	if err != nil {
		return nil, images.NoFile("readdir", dir, err)
	}

	files := make([]ImageFile, 0, len(entries))
	for _, entry := range entries {
		if _, ok := allowed[images.Extension(entry.Name())]; !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if skipEntry(path, entry) {
			continue
		}
		files = append(files, ImageFile{
			Path: path,
			Name: entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// skipEntry reports whether entry cannot hold image data. A dangling symlink is
// kept so that opening it surfaces as a read failure for that file.
func skipEntry(path string, entry fs.DirEntry) bool {
	mode := entry.Type()
	if mode&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		mode = info.Mode()
	}
	return mode.IsDir() || mode&(fs.ModeNamedPipe|fs.ModeSocket|fs.ModeDevice|fs.ModeCharDevice|fs.ModeIrregular) != 0
}
