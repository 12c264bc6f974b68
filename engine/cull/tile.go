package cull

// DefaultTileSize is the default width and height in pixels of each
// screen-space tile. The screen is divided into a grid of tiles, each
// tileSize × tileSize pixels, and lights are assigned to tiles so the
// fragment shader only evaluates lights relevant to each tile.
const DefaultTileSize = 16

// DefaultMaxLightsPerTile is the default maximum number of light indices a
// single tile may reference. If more lights survive a tile's culling test,
// excess lights are dropped and counted.
const DefaultMaxLightsPerTile = 256

// DefaultMaxLightIndices is the default total capacity of the shared light
// index list across all tiles.
const DefaultMaxLightIndices = 65536

// TileCounts computes the number of tiles in each dimension for a given
// screen resolution and tile size. Partial tiles at the right and bottom
// edges count as full tiles.
//
// Parameters:
//   - screenWidth: screen width in pixels
//   - screenHeight: screen height in pixels
//   - tileSize: tile edge length in pixels
//
// Returns:
//   - tileCountX: number of tile columns
//   - tileCountY: number of tile rows
func TileCounts(screenWidth, screenHeight, tileSize int) (tileCountX, tileCountY uint32) {
	tileCountX = (uint32(screenWidth) + uint32(tileSize) - 1) / uint32(tileSize)
	tileCountY = (uint32(screenHeight) + uint32(tileSize) - 1) / uint32(tileSize)
	return
}

// TileIndex returns the row-major flat index of the tile at (tileX, tileY).
//
// Parameters:
//   - tileX: tile column
//   - tileY: tile row
//   - tileCountX: number of tile columns
//
// Returns:
//   - int: the flat tile index
func TileIndex(tileX, tileY int, tileCountX uint32) int {
	return tileY*int(tileCountX) + tileX
}
