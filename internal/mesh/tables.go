package mesh

import (
	"fmt"
	"slices"
)

// Cell corners are numbered by their offset bits: corner i sits at
// (i&1, (i>>1)&1, (i>>2)&1).
const (
	cornerCount = 8
	edgeCount   = 12

	// MaxCellTriangles and MaxCellVertices bound the output of one cell.
	MaxCellTriangles = 5
	MaxCellVertices  = 12

	sentinel = -1
)

// cellEdgeCorners lists the two corners of each cell edge: x edges first,
// then y, then z.
var cellEdgeCorners = [edgeCount][2]uint8{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// cellFaces lists each face's corners counter-clockwise seen from outside
// the cell.
var cellFaces = [6][4]uint8{
	{0, 4, 6, 2}, // x = 0
	{1, 3, 7, 5}, // x = 1
	{0, 1, 5, 4}, // y = 0
	{2, 6, 7, 3}, // y = 1
	{0, 2, 3, 1}, // z = 0
	{4, 5, 7, 6}, // z = 1
}

// Lookup tables, built once at init:
//
//	regularCellClass    case -> equivalence class
//	regularCellData     class -> vertex count (high nibble), triangle count (low nibble)
//	regularCellIndices  class -> triangle list into the case's vertex list, sentinel terminated
//	regularVertexData   case -> active edges in vertex order, corner0 | corner1<<4
var (
	regularCellClass   [256]uint8
	regularCellData    []uint8
	regularCellIndices [][MaxCellTriangles*3 + 1]int8
	regularVertexData  [256][MaxCellVertices]uint8
)

func init() {
	buildTables()
}

// buildTables derives the triangulation of every case by walking the cell
// faces. On each face a maximal run of solid corners contributes one contour
// segment from the edge where the run is left to the edge where it is
// entered; chaining the segments gives closed polygons. Faces with two
// diagonal solid corners keep the solids apart, the same decision a
// neighbouring cell makes for the shared face, so meshes stay closed.
func buildTables() {
	var edgeOf [cornerCount][cornerCount]int
	for i, e := range cellEdgeCorners {
		edgeOf[e[0]][e[1]] = i
		edgeOf[e[1]][e[0]] = i
	}

	classes := map[string]uint8{}
	regularCellData = regularCellData[:0]
	regularCellIndices = regularCellIndices[:0]

	for c := 0; c < 256; c++ {
		solid := func(corner uint8) bool { return c&(1<<corner) != 0 }

		next := [edgeCount]int{}
		for i := range next {
			next[i] = sentinel
		}
		for _, face := range cellFaces {
			for k := 0; k < 4; k++ {
				prev := (k + 3) % 4
				if !solid(face[k]) || solid(face[prev]) {
					continue
				}
				end := k
				for solid(face[(end+1)%4]) {
					end = (end + 1) % 4
				}
				entry := edgeOf[face[prev]][face[k]]
				exit := edgeOf[face[end]][face[(end+1)%4]]
				next[exit] = entry
			}
		}

		var loops [][]int
		var seen [edgeCount]bool
		for e := 0; e < edgeCount; e++ {
			if next[e] == sentinel || seen[e] {
				continue
			}
			var loop []int
			for x := e; !seen[x]; x = next[x] {
				seen[x] = true
				loop = append(loop, x)
			}
			loops = append(loops, loop)
		}
		slices.SortStableFunc(loops, func(a, b []int) int { return len(b) - len(a) })

		key := ""
		vertex := 0
		for _, loop := range loops {
			key += fmt.Sprintf("%d,", len(loop))
			for _, e := range loop {
				regularVertexData[c][vertex] = cellEdgeCorners[e][0] | cellEdgeCorners[e][1]<<4
				vertex++
			}
		}

		class, ok := classes[key]
		if !ok {
			class = uint8(len(regularCellData))
			classes[key] = class
			regularCellData = append(regularCellData, classGeometry(loops))
			regularCellIndices = append(regularCellIndices, classIndices(loops))
		}
		regularCellClass[c] = class
	}
}

func classGeometry(loops [][]int) uint8 {
	vertices, triangles := 0, 0
	for _, loop := range loops {
		vertices += len(loop)
		triangles += len(loop) - 2
	}
	if vertices > MaxCellVertices || triangles > MaxCellTriangles {
		panic(fmt.Sprintf("marching cubes: class %v exceeds cell limits", loops))
	}
	return uint8(vertices<<4 | triangles)
}

// classIndices fans every polygon from its first vertex.
func classIndices(loops [][]int) [MaxCellTriangles*3 + 1]int8 {
	var out [MaxCellTriangles*3 + 1]int8
	for i := range out {
		out[i] = sentinel
	}
	n, offset := 0, 0
	for _, loop := range loops {
		for i := 1; i+1 < len(loop); i++ {
			out[n] = int8(offset)
			out[n+1] = int8(offset + i)
			out[n+2] = int8(offset + i + 1)
			n += 3
		}
		offset += len(loop)
	}
	return out
}

// cellGeometry returns the vertex and triangle counts for a case.
func cellGeometry(c uint8) (vertices, triangles int) {
	data := regularCellData[regularCellClass[c]]
	return int(data >> 4), int(data & 0x0F)
}

// edgeCorners unpacks a vertex-data entry.
func edgeCorners(packed uint8) (c0, c1 int) {
	return int(packed & 0x0F), int(packed >> 4)
}
