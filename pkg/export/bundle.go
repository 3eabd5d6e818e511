package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"
)

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ComposeYAML renders the service descriptor.
func (b Bundle) ComposeYAML() ([]byte, error) {
	data, err := encodeYAML(b.Compose)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ComposeFile, err)
	}
	return data, nil
}

// ConfigYAML renders the topology descriptor.
func (b Bundle) ConfigYAML() ([]byte, error) {
	data, err := encodeYAML(b.Config)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ConfigFile, err)
	}
	return data, nil
}

// Files returns the bundle's documents keyed by file name.
func (b Bundle) Files() (map[string][]byte, error) {
	compose, err := b.ComposeYAML()
	if err != nil {
		return nil, err
	}
	config, err := b.ConfigYAML()
	if err != nil {
		return nil, err
	}
	return map[string][]byte{ComposeFile: compose, ConfigFile: config}, nil
}

// WriteZip writes exactly two files, docker-compose.yml and config.yml, as a
// zip archive.
func (b Bundle) WriteZip(w io.Writer) error {
	files, err := b.Files()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, name := range []string{ComposeFile, ConfigFile} {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
		if _, err := fw.Write(files[name]); err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip close: %w", err)
	}
	return nil
}

// ReadZip parses a bundle written by WriteZip.
func ReadZip(r io.ReaderAt, size int64) (Bundle, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Bundle{}, fmt.Errorf("open bundle: %w", err)
	}
	var b Bundle
	found := 0
	for _, f := range zr.File {
		var dst any
		switch f.Name {
		case ComposeFile:
			dst = &b.Compose
		case ConfigFile:
			dst = &b.Config
		default:
			return Bundle{}, fmt.Errorf("unexpected file %q in bundle", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return Bundle{}, fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = yaml.NewDecoder(rc).Decode(dst)
		rc.Close()
		if err != nil {
			return Bundle{}, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		found++
	}
	if found != 2 {
		return Bundle{}, fmt.Errorf("bundle has %d of 2 descriptors", found)
	}
	return b, nil
}
