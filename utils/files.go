package utils

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/ansel1/merry/v2"
)

// FileContentsEqual compares two files byte for byte. Sizes are checked
// first so the common mismatch is cheap.
func FileContentsEqual(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, merry.Wrap(err)
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, merry.Wrap(err)
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	fileA, err := os.Open(a)
	if err != nil {
		return false, merry.Wrap(err)
	}
	defer fileA.Close()
	fileB, err := os.Open(b)
	if err != nil {
		return false, merry.Wrap(err)
	}
	defer fileB.Close()

	bufA := make([]byte, 64*1024)
	bufB := make([]byte, 64*1024)
	for {
		nA, errA := io.ReadFull(fileA, bufA)
		nB, errB := io.ReadFull(fileB, bufB)
		if !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, merry.Wrap(errA)
		}
		if errB != nil {
			return false, merry.Wrap(errB)
		}
	}
}

// CopyFile copies src to dst, creating the destination directory tree.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return merry.Wrap(err)
	}

	in, err := os.Open(src)
	if err != nil {
		return merry.Wrap(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return merry.Wrap(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return merry.Wrap(err)
	}
	return merry.Wrap(out.Close())
}

// Touch creates an empty file, creating parent directories as needed.
// Existing files are left alone.
func Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return merry.Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return merry.Wrap(err)
	}
	return merry.Wrap(f.Close())
}
