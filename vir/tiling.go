// Copyright 2025 vectir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vir

// Tile is one cell of a tiling: where it starts and how big it is.
// Edge tiles are clamped, so Sizes may be smaller than the nominal tile
// extent.
type Tile struct {
	Offsets []int
	Sizes   []int
}

// TileGrid enumerates the tiles covering shape when cut into sizes-sized
// cells, in row-major order. Both bulk slice operations and their
// lowering agree on this order, which is what makes the positional tuple
// indexing line up.
func TileGrid(shape, sizes []int) []Tile {
	counts := make([]int, len(shape))
	total := 1
	for d := range shape {
		counts[d] = (shape[d] + sizes[d] - 1) / sizes[d]
		total *= counts[d]
	}
	tiles := make([]Tile, 0, total)
	cell := make([]int, len(shape))
	for i := 0; i < total; i++ {
		t := Tile{Offsets: make([]int, len(shape)), Sizes: make([]int, len(shape))}
		for d := range shape {
			t.Offsets[d] = cell[d] * sizes[d]
			t.Sizes[d] = min(sizes[d], shape[d]-t.Offsets[d])
		}
		tiles = append(tiles, t)
		for d := len(shape) - 1; d >= 0; d-- {
			cell[d]++
			if cell[d] < counts[d] {
				break
			}
			cell[d] = 0
		}
	}
	return tiles
}
