/*
Copyright 2011-2017 Frederic Langlet
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

package benchmark

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/flanglet/pqs-go/entropy"
	kio "github.com/flanglet/pqs-go/io"
)

func fillRepeats(values []byte, seed int64) {
	repeats := []int{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3}
	rnd := rand.New(rand.NewSource(seed))
	idx := int(seed) & 0x0F
	size := len(values)

	for i := 0; i < size; i++ {
		i0 := i
		length := repeats[idx]
		idx = (idx + 1) & 0x0F
		b := byte(rnd.Intn(256))

		if i0+length >= size {
			length = size - i0 - 1
		}

		for j := i0; j < i0+length; j++ {
			values[j] = b
			i++
		}
	}
}

func BenchmarkLPAQ(b *testing.B) {
	for jj := 0; jj < 3; jj++ {
		iter := b.N
		size := 50000
		values1 := make([]byte, size)
		values2 := make([]byte, size)
		fillRepeats(values1, int64(jj))

		for ii := 0; ii < iter; ii++ {
			ew := bytes.NewBuffer(make([]byte, 0, size))
			p1, _ := entropy.NewLPAQPredictor(0)
			ec, _ := entropy.NewBinaryEntropyEncoder(entropy.NewEscapeWriter(ew), p1)

			// Encode
			for _, v := range values1 {
				ec.EncodeByte(v)
			}

			if err := ec.Flush(); err != nil {
				msg := fmt.Sprintf("An error occurred during encoding: %v\n", err)
				b.Fatalf(msg)
			}

			ew.WriteByte(entropy.END_OF_FRAME)
			ew.WriteByte(entropy.END_OF_FRAME)

			p2, _ := entropy.NewLPAQPredictor(0)
			ed, _ := entropy.NewBinaryEntropyDecoder(entropy.NewEscapeReader(bytes.NewReader(ew.Bytes())), p2)

			// Decode
			for i := range values2 {
				values2[i] = ed.DecodeByte()
			}

			if err := ed.Err(); err != nil {
				msg := fmt.Sprintf("An error occurred during decoding: %v\n", err)
				b.Fatalf(msg)
			}

			if bytes.Equal(values1, values2) == false {
				b.Fatalf("Decoded data differs from the original data")
			}
		}
	}
}

func BenchmarkStream(b *testing.B) {
	size := 200000
	values := make([]byte, size)
	fillRepeats(values, 7)
	b.SetBytes(int64(size))

	for ii := 0; ii < b.N; ii++ {
		var coded bytes.Buffer
		ctx := map[string]any{"memory": uint(1)}

		if _, _, err := kio.Compress(&coded, bytes.NewReader(values), ctx); err != nil {
			msg := fmt.Sprintf("An error occurred during compression: %v\n", err)
			b.Fatalf(msg)
		}

		var res bytes.Buffer

		if _, _, err := kio.Decompress(&res, &coded, map[string]any{}); err != nil {
			msg := fmt.Sprintf("An error occurred during decompression: %v\n", err)
			b.Fatalf(msg)
		}

		if bytes.Equal(values, res.Bytes()) == false {
			b.Fatalf("Decompressed data differs from the original data")
		}
	}
}

func BenchmarkSnapshot(b *testing.B) {
	values := make([]byte, 50000)
	fillRepeats(values, 3)
	pred, _ := entropy.NewLPAQPredictor(2)

	for _, v := range values {
		for i := 7; i >= 0; i-- {
			pred.Update((v >> uint(i)) & 1)
		}
	}

	b.ResetTimer()

	for ii := 0; ii < b.N; ii++ {
		var buf bytes.Buffer

		if err := pred.Save(&buf); err != nil {
			msg := fmt.Sprintf("Failed to save the predictor: %v\n", err)
			b.Fatalf(msg)
		}

		if _, err := entropy.LoadPredictor(&buf); err != nil {
			msg := fmt.Sprintf("Failed to load the predictor: %v\n", err)
			b.Fatalf(msg)
		}
	}
}
