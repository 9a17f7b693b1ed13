package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/pond/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors to a SafeTensors file.
func WriteSafeTensors(path string, tensors map[string]*tensor.NativeTensor, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Encode(file, tensors, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Encode writes tensors in SafeTensors layout to w.
//
// Tensors are written in alphabetical order by name as F64. The checksum of
// the data section is added to the metadata under ChecksumKey.
func Encode(w io.Writer, tensors map[string]*tensor.NativeTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		if name == metadataKey {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidTensorName, name)
		}
		names = append(names, name)
	}
	if len(names) > MaxTensorCount {
		return fmt.Errorf("%w: %d", ErrTooManyTensors, len(names))
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data bytes.Buffer
	var offset int64
	for _, name := range names {
		t := tensors[name]
		values := t.Data()
		size := int64(len(values) * 8)

		shape := make([]int64, len(t.Shape()))
		for i, dim := range t.Shape() {
			shape[i] = int64(dim)
		}
		header[name] = SafeTensorHeader{
			DType:       "F64",
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size

		buf := make([]byte, 8)
		for _, v := range values {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			data.Write(buf)
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = ComputeChecksum(data.Bytes())
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// ReadSafeTensors reads every tensor and the metadata of a SafeTensors file.
func ReadSafeTensors(path string) (map[string]*tensor.NativeTensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Decode(file)
}

// Decode reads SafeTensors content from r.
//
// F64 and F32 tensors are accepted; both decode to float64. The header is
// validated before any tensor data is interpreted.
func Decode(r io.Reader) (map[string]*tensor.NativeTensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	if m, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(m, &metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}
	if sum, ok := metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	}

	headers := make(map[string]SafeTensorHeader, len(raw))
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		headers[name] = h
		metas = append(metas, TensorMeta{
			Name:   name,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}

	tensors := make(map[string]*tensor.NativeTensor, len(headers))
	for name, h := range headers {
		t, err := decodeTensor(name, h, data[h.DataOffsets[0]:h.DataOffsets[1]])
		if err != nil {
			return nil, nil, err
		}
		tensors[name] = t
	}
	return tensors, metadata, nil
}

func decodeTensor(name string, h SafeTensorHeader, buf []byte) (*tensor.NativeTensor, error) {
	shape := make(tensor.Shape, len(h.Shape))
	for i, dim := range h.Shape {
		if dim <= 0 || dim > math.MaxInt32 {
			return nil, fmt.Errorf("tensor %q: invalid dimension %d", name, dim)
		}
		shape[i] = int(dim)
	}
	n := shape.NumElements()

	var values []float64
	switch h.DType {
	case "F64":
		if len(buf) != n*8 {
			return nil, fmt.Errorf("%w: tensor %q has %d bytes for shape %v", ErrSizeMismatch, name, len(buf), shape)
		}
		values = make([]float64, n)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
	case "F32":
		if len(buf) != n*4 {
			return nil, fmt.Errorf("%w: tensor %q has %d bytes for shape %v", ErrSizeMismatch, name, len(buf), shape)
		}
		values = make([]float64, n)
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		}
	default:
		return nil, fmt.Errorf("%w: tensor %q has dtype %q", ErrUnsupportedDType, name, h.DType)
	}
	return tensor.NewNative(values, shape)
}
