package bundle

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// zipEpoch is the modification time stamped on every zip entry so that equal
// artifacts produce equal archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// listFiles returns the slash-separated relative paths of all regular files
// and symlinks under root.
func listFiles(root string) (sets.Set[string], error) {
	files := sets.New[string]()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files.Insert(filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// digestFiles hashes (path, content) pairs in sorted path order. Symlinks
// contribute their target rather than the file they point to.
func digestFiles(root string, files sets.Set[string]) (string, error) {
	h := sha256.New()
	for _, rel := range sets.List(files) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		fmt.Fprintf(h, "%s\x00", rel)

		info, err := os.Lstat(path)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(h, "link:%s\x00", target)
			continue
		}
		fmt.Fprintf(h, "%o\x00", info.Mode().Perm()&0o111)
		if err := hashFile(h, path); err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Key returns the content-addressed object key of the artifact archive.
func (a *Artifact) Key() string {
	return "assets/" + a.Digest + ".zip"
}

// WriteZip writes the artifact as a zip archive. Entries are sorted and carry
// a fixed timestamp, so equal artifacts yield byte-identical archives.
func (a *Artifact) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, rel := range sets.List(a.Files) {
		if err := addZipEntry(zw, a.RootPath, rel); err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
	}
	return zw.Close()
}

func addZipEntry(zw *zip.Writer, root, rel string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     rel,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		header.Method = zip.Store
		header.SetMode(fs.ModeSymlink | 0o777)
		ew, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = io.WriteString(ew, target)
		return err
	}

	mode := fs.FileMode(0o644)
	if info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}
	header.SetMode(mode)

	ew, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(ew, f)
	return err
}
