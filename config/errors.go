package config

import "errors"

var (
	errInvalidTickLen         = errors.New("config: tick_len must be positive")
	errInvalidMaxLag          = errors.New("config: max_lag must be >= 3")
	errInvalidMDPagesReserved = errors.New("config: md_pages_reserved must be positive")
	errInvalidMDFilePath      = errors.New("config: md_file_path must not be empty")
)
