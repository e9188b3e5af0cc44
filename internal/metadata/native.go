package metadata

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/sassoftware/go-rpmutils"
	"github.com/ulikunitz/xz"
)

const (
	arMagic       = "!<arch>\n"
	arHeaderSize  = 60
	maxControlTar = 16 << 20
	maxControl    = 1 << 20
)

// ReadDebControl reads the control file straight out of a .deb archive,
// for hosts without dpkg-deb
func ReadDebControl(r io.Reader) (core.PackageMetadata, error) {
	control, err := extractDebControl(r)
	if err != nil {
		return core.PackageMetadata{}, err
	}
	return ParseControl(control), nil
}

func extractDebControl(r io.Reader) ([]byte, error) {
	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read ar magic: %w", err)
	}
	if string(magic) != arMagic {
		return nil, errors.New("not an ar archive")
	}

	header := make([]byte, arHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("control.tar not found in package")
			}
			return nil, fmt.Errorf("read ar header: %w", err)
		}

		name := strings.TrimRight(strings.TrimSpace(string(header[0:16])), "/")
		size, err := strconv.ParseInt(strings.TrimSpace(string(header[48:58])), 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("invalid ar member size for %q", name)
		}

		if strings.HasPrefix(name, "control.tar") {
			if size > maxControlTar {
				return nil, fmt.Errorf("%s too large: %d bytes", name, size)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			return controlFromTar(data, name)
		}

		// members are 2-byte aligned
		skip := size + size%2
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("skip %s: %w", name, err)
		}
	}
}

func controlFromTar(data []byte, member string) ([]byte, error) {
	var src io.Reader = bytes.NewReader(data)

	switch path.Ext(member) {
	case ".gz":
		gz, err := pgzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	case ".xz":
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("open xz: %w", err)
		}
		src = xr
	case ".zst":
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("open zstd: %w", err)
		}
		defer zr.Close()
		src = zr
	case ".tar":
	default:
		return nil, fmt.Errorf("unsupported control archive %s", member)
	}

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("control file not found in control.tar")
		}
		if err != nil {
			return nil, fmt.Errorf("read control.tar: %w", err)
		}
		if hdr.Name == "./control" || hdr.Name == "control" {
			return io.ReadAll(io.LimitReader(tr, maxControl))
		}
	}
}

// ReadRpmHeader reads metadata from the header of an .rpm file, for hosts without rpm
func ReadRpmHeader(r io.Reader) (core.PackageMetadata, error) {
	rpm, err := rpmutils.ReadRpm(r)
	if err != nil {
		return core.PackageMetadata{}, fmt.Errorf("read rpm header: %w", err)
	}

	version := rpmString(rpm, rpmutils.VERSION)
	if rel := rpmString(rpm, rpmutils.RELEASE); version != "" && rel != "" {
		version += "-" + rel
	}

	return core.PackageMetadata{
		Name:         rpmString(rpm, rpmutils.NAME),
		Version:      version,
		Architecture: rpmString(rpm, rpmutils.ARCH),
		Description:  rpmString(rpm, rpmutils.SUMMARY),
		Maintainer:   rpmString(rpm, rpmutils.PACKAGER),
	}, nil
}

func rpmString(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
