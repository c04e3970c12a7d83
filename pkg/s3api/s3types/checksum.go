// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import "fmt"

// ChecksumAlgorithm selects an additional integrity checksum sent with a put.
type ChecksumAlgorithm uint8

const (
	ChecksumAlgorithmNone ChecksumAlgorithm = iota
	ChecksumAlgorithmCRC64NVMe
)

var (
	checksumAlgorithmTypes = map[ChecksumAlgorithm]string{
		ChecksumAlgorithmNone:      "NONE",
		ChecksumAlgorithmCRC64NVMe: "CRC64NVME",
	}
	checksumAlgorithmNames = map[string]ChecksumAlgorithm{
		"":          ChecksumAlgorithmNone,
		"NONE":      ChecksumAlgorithmNone,
		"CRC64NVME": ChecksumAlgorithmCRC64NVMe,
	}
)

func (c ChecksumAlgorithm) String() string {
	if name, ok := checksumAlgorithmTypes[c]; ok {
		return name
	}
	return "NONE"
}

func (c ChecksumAlgorithm) IsValid() bool {
	return c != ChecksumAlgorithmNone
}

func ParseChecksumAlgorithm(s string) (ChecksumAlgorithm, error) {
	if alg, ok := checksumAlgorithmNames[s]; ok {
		return alg, nil
	}
	return ChecksumAlgorithmNone, fmt.Errorf("unsupported checksum algorithm %q", s)
}
