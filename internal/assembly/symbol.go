package assembly

// The AOT compiler names the metadata global of every compiled assembly
// prefix + stem + suffix. The registration stub references the same symbol, so
// both sides must derive it with MetadataSymbol and nothing else.
const (
	MetadataSymbolPrefix = "mono_aot_module_"
	MetadataSymbolSuffix = "_info"
)

// MetadataSymbol returns the AOT metadata global name for the assembly at path.
func MetadataSymbol(path string) string {
	return MetadataSymbolPrefix + Stem(path) + MetadataSymbolSuffix
}
