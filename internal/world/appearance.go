package world

// Material identifies the surface type of a voxel. Zero is reserved for air.
type Material = uint8

const (
	MaterialAir Material = iota
	MaterialStone
	MaterialDirt
	MaterialGrass
	MaterialSand
	MaterialGravel
	MaterialSnow
	MaterialBedrock

	// MaterialCount bounds the palette; the mesher packs ids into float vectors.
	MaterialCount
)

// Appearance captures visual styling for a material.
type Appearance struct {
	Name  string
	Color string
}

// DefaultAppearances enumerates the built-in material visuals.
var DefaultAppearances = map[Material]Appearance{
	MaterialAir:     {Name: "air", Color: "#0a0a12"},
	MaterialStone:   {Name: "stone", Color: "#7d7d7d"},
	MaterialDirt:    {Name: "dirt", Color: "#8b5a2b"},
	MaterialGrass:   {Name: "grass", Color: "#5d9b3d"},
	MaterialSand:    {Name: "sand", Color: "#dbcf8e"},
	MaterialGravel:  {Name: "gravel", Color: "#8e8580"},
	MaterialSnow:    {Name: "snow", Color: "#f0f4f8"},
	MaterialBedrock: {Name: "bedrock", Color: "#303030"},
}

// MaterialName returns a readable name for logs and previews.
func MaterialName(m Material) string {
	if a, ok := DefaultAppearances[m]; ok {
		return a.Name
	}
	return "unknown"
}
