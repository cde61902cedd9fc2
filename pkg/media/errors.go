package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"errors"
)

// Domain errors surfaced by the media adapters.
var (
	ErrDiskInvalidLayout = errors.New("invalid disk layout")
	ErrDiskIncompatible  = errors.New("disk is incompatible")
	ErrDiskMissing       = errors.New("no disk present")

	ErrHdrTooLarge          = errors.New("hard drive image is too large")
	ErrHdrInvalidBsize      = errors.New("invalid block size")
	ErrHdrInvalidGeometry   = errors.New("invalid drive geometry")
	ErrHdrUnmatchedGeometry = errors.New("geometry does not match the image size")

	ErrExtFactor5      = errors.New("factor 5 extended ADFs are not supported")
	ErrExtCorrupted    = errors.New("extended ADF is corrupted")
	ErrExtIncompatible = errors.New("extended ADF feature is not supported")

	ErrZlib = errors.New("decompression failed")

	ErrWt        = errors.New("write-through failure")
	ErrWtBlocked = errors.New("write-through storage file is in use")
)

// Hardware-level IO codes returned to the guest OS.
const (
	IOErrOK         int8 = 0
	IOErrBadLength  int8 = -4
	IOErrBadAddress int8 = -5
)
