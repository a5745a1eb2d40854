package logs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReassembledFile is the name of the file part files are merged into.
const ReassembledFile = "reassembled.log"

// ErrLogsNotRetrieved is returned when there is no local copy to reassemble.
var ErrLogsNotRetrieved = errors.New("logs have not been retrieved")

// ReassembledDir returns the directory Reassemble writes to.
func ReassembledDir(root, name string) string {
	return Dir(root, name+"-reassembled")
}

// Reassemble copies logs/<name> to logs/<name>-reassembled and, in every
// directory of the copy, concatenates the *.partN* files in order of N into
// reassembled.log. Literal "\n" sequences written by the log shipper become
// newlines. The merged part files are removed from the copy.
func Reassemble(root, name string) (string, error) {
	src := Dir(root, name)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLogsNotRetrieved, name)
		}
		return "", err
	}

	dest := ReassembledDir(root, name)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to remove previous %s: %w", dest, err)
	}
	if err := copyTree(src, dest); err != nil {
		return "", err
	}

	err := filepath.WalkDir(dest, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return mergeParts(path)
	})
	if err != nil {
		return "", fmt.Errorf("failed to reassemble %s: %w", name, err)
	}
	return dest, nil
}

type partFile struct {
	path  string
	index int
}

// PartIndex returns N for a file named like "x.log.partN" or
// "x.partN.log". ok is false for files that are not parts.
func PartIndex(name string) (int, bool) {
	i := strings.LastIndex(name, ".part")
	if i < 0 {
		return 0, false
	}
	rest := name[i+len(".part"):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func mergeParts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var parts []partFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := PartIndex(e.Name()); ok {
			parts = append(parts, partFile{path: filepath.Join(dir, e.Name()), index: n})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].index < parts[j].index })

	out, err := os.Create(filepath.Join(dir, ReassembledFile))
	if err != nil {
		return err
	}
	defer out.Close()

	for _, p := range parts {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, strings.ReplaceAll(string(data), `\n`, "\n")); err != nil {
			return err
		}
		if err := os.Remove(p.path); err != nil {
			return err
		}
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
