package dto

type TileQueryRequest struct {
	Zoom         *int   `form:"zoom" validate:"required"`
	IdxFrom      *int64 `form:"idxFrom" validate:"omitempty,gte=0"`
	IdxBefore    *int64 `form:"idxBefore" validate:"omitempty,gte=0"`
	BiggerThan   *int64 `form:"biggerThan" validate:"omitempty,gte=0"`
	SmallerThan  *int64 `form:"smallerThan" validate:"omitempty,gte=0"`
	IncludeTiles bool   `form:"tiles"`

	// Accepted syntactically, rejected by the store: tiles carry no write
	// timestamp.
	DateFrom   string `form:"dateFrom"`
	DateBefore string `form:"dateBefore"`
}

type TileRecordResponse struct {
	Zoom int    `json:"zoom"`
	Idx  int64  `json:"idx"`
	Tile []byte `json:"tile,omitempty"`
}

type BulkTileRequest struct {
	Tiles []BulkTileEntry `json:"tiles" validate:"required,dive"`
}

type BulkTileEntry struct {
	Z    int    `json:"z" validate:"gte=0"`
	X    int    `json:"x" validate:"gte=0"`
	Y    int    `json:"y" validate:"gte=0"`
	Tile []byte `json:"tile"`
}

type BulkTileResponse struct {
	Loaded int `json:"loaded"`
}
