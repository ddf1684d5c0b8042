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

package pqs

// array with 33 elements: 4096/(1 + exp(-x/256)) sampled every 128 steps
var _SQUASH_POINTS = [33]int{
	1, 2, 3, 6, 10, 16, 27, 45, 73, 120, 194, 310, 488, 747, 1101,
	1546, 2047, 2549, 2994, 3348, 3607, 3785, 3901, 3975, 4022,
	4050, 4068, 4079, 4085, 4089, 4092, 4093, 4094,
}

// SQUASH contains p = 1/(1 + exp(-d)), d scaled by 8 bits, p scaled by 12 bits
var SQUASH [4095]int

// STRETCH is the inverse of squash. d = ln(p/(1-p)), d scaled by 8 bits, p by 12 bits.
// d has range -2047 to 2047 representing -8 to 8. p in [0..4095].
var STRETCH [4096]int

func init() {
	// Init squash: interpolate between the sampled points
	for x := -2047; x <= 2047; x++ {
		w := x & 127
		y := (x >> 7) + 16
		SQUASH[x+2047] = (_SQUASH_POINTS[y]*(128-w) + _SQUASH_POINTS[y+1]*w + 64) >> 7
	}

	pi := 0

	// Invert squash
	for x := -2047; x <= 2047; x++ {
		i := Squash(x)

		for pi <= i {
			STRETCH[pi] = x
			pi++
		}
	}

	for pi < 4096 {
		STRETCH[pi] = 2047
		pi++
	}
}

// Squash returns p = 1/(1 + exp(-d)), d scaled by 8 bits, p scaled by 12 bits
func Squash(d int) int {
	if d > 2047 {
		return 4095
	}

	if d < -2047 {
		return 0
	}

	return SQUASH[d+2047]
}

// Stretch returns ln(p/(1-p)) scaled by 8 bits for p in [0..4095]
func Stretch(p int) int {
	return STRETCH[p]
}
