package normalizer

// Shape is the top-level layout of an ingested document.
type Shape int

const (
	// ShapeUnknown is a scalar or null document with no item list.
	ShapeUnknown Shape = iota
	// ShapeArray is a bare JSON array of items.
	ShapeArray
	// ShapeDataEnvelope is an object whose "data" field is an array (API responses).
	ShapeDataEnvelope
	// ShapeTweetsEnvelope is an object whose "tweets" field is an array.
	ShapeTweetsEnvelope
	// ShapeSingle is any other object, read as one item.
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeDataEnvelope:
		return "data-envelope"
	case ShapeTweetsEnvelope:
		return "tweets-envelope"
	case ShapeSingle:
		return "single"
	default:
		return "unknown"
	}
}

// Classify decides which of the accepted layouts raw has and returns its item list.
// The checks run in a fixed order: array, data envelope, tweets envelope, single object.
func Classify(raw any) (Shape, []any) {
	switch v := raw.(type) {
	case []any:
		return ShapeArray, v
	case map[string]any:
		if items, ok := v["data"].([]any); ok {
			return ShapeDataEnvelope, items
		}
		if items, ok := v["tweets"].([]any); ok {
			return ShapeTweetsEnvelope, items
		}
		return ShapeSingle, []any{v}
	default:
		return ShapeUnknown, nil
	}
}
