package registry

import _ "embed"

//go:embed default.yaml
var defaultManifest []byte

// Default returns the built-in registry used when no manifest is configured.
func Default() *Registry {
	r, err := Parse(defaultManifest)
	if err != nil {
		panic("registry: built-in manifest is invalid: " + err.Error())
	}
	return r
}
