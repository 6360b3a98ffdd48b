package mb

import (
	"errors"

	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/webtile"
)

// ExportPyramid writes every level of p into a new MBTiles file.
func ExportPyramid(p *pyramid.Pyramid, filePath string, opts ...webtile.ExportOption) (metadata *webtile.Metadata, err error) {
	w, err := NewWriter(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	metadata, err = webtile.Export(p, w, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Finalize(); err != nil {
		return nil, err
	}
	return metadata, nil
}

// OpenPyramid opens a pyramid exported by ExportPyramid. The returned
// Reader must be closed once the pyramid is no longer used.
func OpenPyramid(filePath string, opts ...pyramid.Option) (*pyramid.Pyramid, *Reader, error) {
	r, err := NewReader(filePath)
	if err != nil {
		return nil, nil, err
	}
	p, err := openPyramid(r, opts)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return p, r, nil
}

func openPyramid(r *Reader, opts []pyramid.Option) (*pyramid.Pyramid, error) {
	values, err := r.ReadMetadata()
	if err != nil {
		return nil, err
	}
	metadata, err := webtile.ParseMetadata(values)
	if err != nil {
		return nil, err
	}
	return webtile.Import(r, metadata, opts...)
}
