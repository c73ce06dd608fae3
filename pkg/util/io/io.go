package io

import (
	"io"
	"io/fs"

	"github.com/pkg/errors"
)

type lener interface {
	Len() int
}

type stater interface {
	Stat() (fs.FileInfo, error)
}

// TryGetSize reports the number of bytes a reader will yield without
// consuming it. Files report their full size, in-memory readers the unread part.
func TryGetSize(r io.Reader) (int64, error) {
	switch f := r.(type) {
	case lener:
		return int64(f.Len()), nil
	case stater:
		fi, err := f.Stat()
		if err != nil {
			return 0, errors.Wrap(err, "stat reader")
		}
		if fi.IsDir() {
			return 0, errors.Errorf("reader is a directory: %s", fi.Name())
		}
		return fi.Size(), nil
	}

	return 0, errors.Errorf("unsupported type of io.Reader: %T", r)
}
