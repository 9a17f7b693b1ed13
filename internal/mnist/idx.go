package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// IDX magic numbers.
const (
	imagesMagic = 2051
	labelsMagic = 2049
)

// maxIDXItems bounds the item count read from a header.
const maxIDXItems = 1 << 24

// readIDXImages reads an image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
//
// At most maxItems images are read when maxItems > 0.
func readIDXImages(r io.Reader, maxItems int) (pixels []byte, n, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, 0, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", header[0], imagesMagic)
	}
	n, rows, cols = int(header[1]), int(header[2]), int(header[3])
	if n > maxIDXItems || rows == 0 || cols == 0 || rows > 1024 || cols > 1024 {
		return nil, 0, 0, 0, fmt.Errorf("implausible image header: %d images of %dx%d", n, rows, cols)
	}
	if maxItems > 0 && n > maxItems {
		n = maxItems
	}

	pixels = make([]byte, n*rows*cols)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read %d images: %w", n, err)
	}
	return pixels, n, rows, cols, nil
}

// readIDXLabels reads a label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func readIDXLabels(r io.Reader, maxItems int) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", header[0], labelsMagic)
	}
	n := int(header[1])
	if n > maxIDXItems {
		return nil, fmt.Errorf("implausible label count %d", n)
	}
	if maxItems > 0 && n > maxItems {
		n = maxItems
	}

	labels := make([]byte, n)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read %d labels: %w", n, err)
	}
	return labels, nil
}

// openIDX opens path, or path+".gz" through a gzip reader when path does
// not exist.
func openIDX(path string) (io.ReadCloser, error) {
	//nolint:gosec // G304: dataset path comes from the user
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	//nolint:gosec // G304: dataset path comes from the user
	gz, gzErr := os.Open(path + ".gz")
	if gzErr != nil {
		// Report the uncompressed name the caller asked for.
		return nil, err
	}
	zr, err := gzip.NewReader(gz)
	if err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("%s.gz: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: gz}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
