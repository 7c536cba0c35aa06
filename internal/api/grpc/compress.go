package grpc

import (
	"io"

	"github.com/golang/snappy"
	"google.golang.org/grpc/encoding"
)

// SnappyName is the grpc-encoding name of the snappy compressor.
const SnappyName = "snappy"

func init() {
	encoding.RegisterCompressor(snappyCompressor{})
}

// snappyCompressor frames messages with the snappy stream format.
type snappyCompressor struct{}

func (snappyCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

func (snappyCompressor) Name() string { return SnappyName }
