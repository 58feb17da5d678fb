package wlproxy

// Rectangle is the single rectangle a region resolves to. §3 "Region
// object id -> rectangle" models a region as one rectangle rather than
// a list of additive/subtractive ops: the last add wins, subtract is
// accepted but has no effect. Regions are bookkeeping only — nothing
// in this compositor clips composition to opaque/input regions yet.
type Rectangle struct {
	X, Y, W, H int32
}
