package sssnss

import (
	"reflect"
	"runtime/debug"
	"sync"
)

var (
	moduleVersion     string
	moduleVersionOnce sync.Once
)

// Version reports the module version this package was built from, or "dev"
// when it is not known.
func Version() string {
	moduleVersionOnce.Do(func() {
		type marker struct{}
		path := reflect.TypeFor[marker]().PkgPath()

		if bi, ok := debug.ReadBuildInfo(); ok {
			if bi.Main.Path == path {
				moduleVersion = bi.Main.Version
			}
			for _, dep := range bi.Deps {
				if dep.Path == path {
					moduleVersion = dep.Version
					break
				}
			}
		}
		// a git checkout or vendored copy has no usable version
		if moduleVersion == "" || moduleVersion == "(devel)" {
			moduleVersion = "dev"
		}
	})
	return moduleVersion
}
