package wasm

// EmptyModuleName replaces empty import module names for engines that
// reject them.
const EmptyModuleName = "$"

// RewriteEmptyModuleNames returns bin with every empty import module name
// replaced by EmptyModuleName. bin is returned as is when no import has an
// empty module name or when it does not decode.
func RewriteEmptyModuleNames(bin []byte) []byte {
	m, err := ParseModule(bin)
	if err != nil {
		return bin
	}
	rewritten := false
	for i := range m.Imports {
		if m.Imports[i].Module == "" {
			m.Imports[i].Module = EmptyModuleName
			rewritten = true
		}
	}
	if !rewritten {
		return bin
	}
	return m.Encode()
}
