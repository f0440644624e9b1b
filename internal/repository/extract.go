package repository

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// extractTarGz unpacks archivePath into dest and returns the top-level
// directory name taken from the first entry.
func extractTarGz(archivePath, dest string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	return untarStream(gz, dest)
}

func untarStream(r io.Reader, dest string) (string, error) {
	tr := tar.NewReader(r)
	root := ""
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read tar header: %w", err)
		}

		name, err := cleanEntryName(header.Name)
		if err != nil {
			return "", err
		}
		if name == "" {
			continue
		}
		if root == "" {
			root = strings.SplitN(name, "/", 2)[0]
		}

		if err := checkNoSymlinkParents(dest, name); err != nil {
			return "", err
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header.Mode)); err != nil {
				return "", fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := writeEntry(tr, target, os.FileMode(header.Mode).Perm()); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(dest, target, header.Linkname); err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("prepare link %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return "", fmt.Errorf("create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			linkName, err := cleanEntryName(header.Linkname)
			if err != nil {
				return "", err
			}
			if err := checkNoSymlinkParents(dest, linkName); err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("prepare link %s: %w", target, err)
			}
			if err := os.Link(filepath.Join(dest, filepath.FromSlash(linkName)), target); err != nil {
				return "", fmt.Errorf("create hard link %s: %w", target, err)
			}
		default:
			// Ignore other entry types.
		}
	}
	if root == "" {
		return "", errors.New("archive is empty")
	}
	return root, nil
}

// cleanEntryName normalizes a tar entry name and rejects entries that would
// escape the extraction directory.
func cleanEntryName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(name, "./"))
	if cleaned == "." {
		return "", nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive entry %q escapes extraction root", name)
	}
	return cleaned, nil
}

// checkLinkTarget rejects symlinks pointing outside dest.
func checkLinkTarget(dest, target, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || path.IsAbs(linkname) {
		return fmt.Errorf("symlink %s -> %q escapes extraction root", target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if !within(dest, resolved) {
		return fmt.Errorf("symlink %s -> %q escapes extraction root", target, linkname)
	}
	return nil
}

// checkNoSymlinkParents refuses entries whose path runs through a symlink
// created by an earlier entry, so writes cannot be redirected.
func checkNoSymlinkParents(dest, name string) error {
	parts := strings.Split(name, "/")
	current := dest
	for _, part := range parts[:len(parts)-1] {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("archive entry %q passes through symlink %s", name, current)
		}
	}
	return nil
}

func within(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("archive entry %s would overwrite a symlink", target)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

func dirMode(mode int64) os.FileMode {
	perm := os.FileMode(mode).Perm()
	if perm == 0 {
		return 0o755
	}
	// Directories must stay traversable so extraction can continue below them.
	return perm | 0o700
}
