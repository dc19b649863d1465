package smf

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid SMF magic")
	ErrUnsupportedMajor   = errors.New("unsupported SMF major version")
	ErrUnsupportedVersion = errors.New("unsupported SMF section version")
	ErrCorruptFile        = errors.New("corrupt SMF file")
)
