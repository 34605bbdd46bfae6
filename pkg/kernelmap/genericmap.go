package kernelmap

// GenericMap binds a lookup table written once at load time (spec.md §4.2
// "map(name, &[u8])"), such as a constants table or a syscall-number
// lookup. Unlike the counter/histogram bindings it has no per-refresh
// behavior.
type GenericMap struct {
	name string
	data []byte
}

// NewGenericMap wraps the raw bytes to be written to the map at load.
func NewGenericMap(name string, data []byte) *GenericMap {
	return &GenericMap{name: name, data: data}
}

// Name returns the bound map's name.
func (b *GenericMap) Name() string { return b.name }

// Bytes returns the data to write at load time.
func (b *GenericMap) Bytes() []byte { return b.data }
