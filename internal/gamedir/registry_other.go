//go:build !windows

package gamedir

// RegistryLocation always reports false off Windows.
func RegistryLocation() (string, bool) {
	return "", false
}
