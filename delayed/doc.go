// Package delayed provides an in-memory store for delayed values.
//
// A delayed value is a placeholder whose content lives outside the value tree:
// an aggregator or snapshot counter (u64 or u128) or a derived string padded to
// a constant width. The codec resolves placeholders through the Store when
// encoding, and binds decoded content back to ids through Identify.
//
//	store := delayed.NewStore()
//	agg, _ := store.PutAggregator(value.U64(100))
//	c := codec.New(codec.WithDelayedStore(store), codec.WithDelayedMapper(store))
//	data, _ := c.Encode(agg, layout.MustParse("aggregator<u64>"))
//
// # Derived Strings
//
// Derived string content has the shape
//
//	struct{struct{vector<u8>}, vector<u8>}
//
// where the second vector is zero padding. The padding length is chosen so the
// whole content encodes to exactly the handle's width, which lets the size of
// a value be computed without rendering the string. The padding's length
// prefix grows past one byte for wide handles; widths that fall between two
// prefix sizes cannot be filled and are rejected.
//
// Identify maps content back to the one entry holding it. Content shared by
// several entries is ambiguous and fails, since the encoding carries no id.
package delayed
