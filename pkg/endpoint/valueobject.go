package endpoint

// ValueObject is implemented by parameter types that wrap a primitive, such
// as typed identifiers or enums. SetParams replaces them with ToValue().
type ValueObject interface {
	ToValue() any
}

// unwrap returns the primitive behind a ValueObject; other values pass through.
func unwrap(val any) any {
	if vo, ok := val.(ValueObject); ok {
		return vo.ToValue()
	}
	return val
}
