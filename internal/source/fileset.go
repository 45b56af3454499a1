package source

import "sort"

// FileSet is the uniform in-memory view of all merged source trees: file
// contents keyed by path relative to the tree root.
type FileSet struct {
	names map[string]struct{}
	files map[string][]byte
}

// NewFileSet returns an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{
		names: make(map[string]struct{}),
		files: make(map[string][]byte),
	}
}

// Put stores a file, overriding any earlier file at the same path.
func (fs *FileSet) Put(relPath string, contents []byte) {
	fs.names[relPath] = struct{}{}
	fs.files[relPath] = contents
}

// Read returns the contents of a file, false if absent.
func (fs *FileSet) Read(relPath string) ([]byte, bool) {
	b, ok := fs.files[relPath]
	return b, ok
}

// Names returns all file paths, sorted.
func (fs *FileSet) Names() []string {
	out := make([]string, 0, len(fs.names))
	for n := range fs.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of files in the set.
func (fs *FileSet) Len() int { return len(fs.files) }
