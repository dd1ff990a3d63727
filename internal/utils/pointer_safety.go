package utils

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// FirstNonEmpty returns the first argument that is not the empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
