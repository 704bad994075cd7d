//go:build windows

package gamedir

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

const installKey = `SOFTWARE\WOW6432Node\Riot Games, Inc\League of Legends`

// RegistryLocation reads the "Location" value the installer writes under HKLM.
func RegistryLocation() (string, bool) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, installKey, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()
	v, _, err := k.GetStringValue("Location")
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}
