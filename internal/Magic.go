/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package internal

import (
	"encoding/binary"
)

const (
	NO_MAGIC     = 0
	PQS_MAGIC    = 0x705153   // "pQS" followed by the memory digit
	MODEL_MAGIC  = 0x7051534D // "pQSM" saved predictor state
	GZIP_MAGIC   = 0x1F8B
	ZIP_MAGIC    = 0x504B0304
	LZMA_MAGIC   = 0x377ABCAF
	ZSTD_MAGIC   = 0x28B52FFD
	XZ_MAGIC     = 0xFD377A58
	RAR_MAGIC    = 0x52617221
	KNZ_MAGIC    = 0x4B414E5A
	BROTLI_MAGIC = 0x81CFB2CE
	BZIP2_MAGIC  = 0x425A68
	JPG_MAGIC    = 0xFFD8FFE0
	PNG_MAGIC    = 0x89504E47
	GIF_MAGIC    = 0x47494638
)

var (
	_KEYS32 = [11]uint{
		MODEL_MAGIC, ZIP_MAGIC, LZMA_MAGIC, ZSTD_MAGIC, XZ_MAGIC, RAR_MAGIC,
		KNZ_MAGIC, BROTLI_MAGIC, PNG_MAGIC, GIF_MAGIC, JPG_MAGIC,
	}
)

// GetMagicType checks the first bytes of the slice against the pqs magic
// values and a list of common compressed formats
func GetMagicType(src []byte) uint {
	if len(src) < 4 {
		return NO_MAGIC
	}

	key := uint(binary.BigEndian.Uint32(src))

	for _, k := range _KEYS32 {
		if key == k {
			return key
		}
	}

	if key>>8 == PQS_MAGIC && src[3] >= '0' && src[3] <= '9' {
		return PQS_MAGIC
	}

	if key>>8 == BZIP2_MAGIC {
		return BZIP2_MAGIC
	}

	if key>>16 == GZIP_MAGIC {
		return GZIP_MAGIC
	}

	return NO_MAGIC
}

// IsDataCompressed return true if the provided magic parameter corresponds
// to a known compressed data type.
func IsDataCompressed(magic uint) bool {
	switch magic {
	case PQS_MAGIC, MODEL_MAGIC, GZIP_MAGIC, ZIP_MAGIC, LZMA_MAGIC, ZSTD_MAGIC,
		XZ_MAGIC, RAR_MAGIC, KNZ_MAGIC, BROTLI_MAGIC, BZIP2_MAGIC,
		JPG_MAGIC, PNG_MAGIC, GIF_MAGIC:
		return true
	default:
	}

	return false
}
