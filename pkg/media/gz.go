package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/klauspost/compress/gzip"
)

// gzMagic identifies a gzip stream.
var gzMagic = []byte{0x1F, 0x8B}

// decompress inflates a gzip-wrapped image.
func decompress(r io.Reader) ([]byte, error) {

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrZlib)
	}
	defer zr.Close()

	data, err := ioutil.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrZlib)
	}
	return data, nil
}

// ReadADZ reads a gzip-wrapped ADF.
func ReadADZ(r io.Reader) (*ADFFile, error) {

	data, err := decompress(r)
	if err != nil {
		return nil, err
	}
	return ReadADF(bytes.NewReader(data))
}

// OpenADZ loads a gzip-wrapped ADF from a file.
func OpenADZ(path string) (*ADFFile, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadADZ(f)
}

// WriteADZ stores an ADF gzip-wrapped.
func WriteADZ(a *ADFFile, w io.Writer) error {

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(a.Data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadHDZ reads a gzip-wrapped HDF.
func ReadHDZ(r io.Reader) (*HDFFile, error) {

	data, err := decompress(r)
	if err != nil {
		return nil, err
	}
	return ReadHDF(bytes.NewReader(data))
}

// OpenHDZ loads a gzip-wrapped HDF from a file.
func OpenHDZ(path string) (*HDFFile, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadHDZ(f)
}

// WriteHDZ stores an HDF gzip-wrapped.
func WriteHDZ(h *HDFFile, w io.Writer) error {

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(h.Data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
