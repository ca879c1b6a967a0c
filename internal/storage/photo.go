// Package storage opens profile photos from local files or MinIO objects so
// they can be attached to a profile update.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedPhoto = errors.New("photo is not an image")
	ErrInvalidRef       = errors.New("invalid photo reference")
)

// sniffLen is how much of a photo is read to detect its type.
const sniffLen = 3072

type Photo struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.ReadCloser
}

func (p *Photo) Close() error {
	if p == nil || p.Reader == nil {
		return nil
	}
	return p.Reader.Close()
}

type PhotoSource interface {
	Open(ctx context.Context, ref string) (*Photo, error)
}

// sniff detects the content type from the head of r and returns a reader
// that still yields the whole stream.
func sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read photo header: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	return mtype.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

type readCloser struct {
	io.Reader
	io.Closer
}

type LocalSource struct{}

func (LocalSource) Open(_ context.Context, ref string) (*Photo, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat photo: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidRef, ref)
	}

	contentType, r, err := sniff(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if !isImage(contentType) {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedPhoto, ref, contentType)
	}

	return &Photo{
		Name:        filepath.Base(ref),
		ContentType: contentType,
		Size:        info.Size(),
		Reader:      readCloser{Reader: r, Closer: f},
	}, nil
}

// Sources opens minio:// references through Remote and everything else as
// a local path.
type Sources struct {
	Local  PhotoSource
	Remote PhotoSource
}

func (s Sources) Open(ctx context.Context, ref string) (*Photo, error) {
	if strings.HasPrefix(ref, minioScheme) {
		if s.Remote == nil {
			return nil, fmt.Errorf("%w: no object storage configured for %s", ErrInvalidRef, ref)
		}
		return s.Remote.Open(ctx, ref)
	}

	local := s.Local
	if local == nil {
		local = LocalSource{}
	}
	return local.Open(ctx, ref)
}
