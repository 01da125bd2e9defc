package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// StringPtrIfSet returns nil for an empty string, otherwise a pointer to s.
func StringPtrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
