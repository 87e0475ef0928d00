package codec

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

type readCloser struct {
	reader io.Reader
	close  func() error
}

func (r readCloser) Read(p []byte) (int, error) { return r.reader.Read(p) }
func (r readCloser) Close() error               { return r.close() }

// OpenInput opens path for reading, transparently decompressing it with
// pgzip if the name ends in ".gz". Used by the join and stack operators to
// read their second input file.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{
			reader: gz,
			close: func() error {
				_ = gz.Close()
				return f.Close()
			},
		}, nil
	}
	return f, nil
}
