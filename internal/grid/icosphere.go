package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NewIcosphere builds a grid by subdividing an icosahedron level times.
// The result has 10*4^level + 2 vertices.
func NewIcosphere(level int) *Grid {
	t := (1 + math.Sqrt(5)) / 2
	pos := []mgl64.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range pos {
		pos[i] = pos[i].Normalize()
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for l := 0; l < level; l++ {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			k := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[k]; ok {
				return i
			}
			pos = append(pos, pos[a].Add(pos[b]).Normalize())
			mid[k] = len(pos) - 1
			return len(pos) - 1
		}
		next := make([][3]int, 0, len(faces)*4)
		for _, f := range faces {
			a := midpoint(f[0], f[1])
			b := midpoint(f[1], f[2])
			c := midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], a, c},
				[3]int{f[1], b, a},
				[3]int{f[2], c, b},
				[3]int{a, b, c},
			)
		}
		faces = next
	}
	return New(pos, faces)
}

// VertexCount returns the vertex count of an icosphere at the given level.
func VertexCount(level int) int {
	count := 10
	for i := 0; i < level; i++ {
		count *= 4
	}
	return count + 2
}
