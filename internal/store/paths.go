package store

import "path/filepath"

func StatePath(root string) string {
	return filepath.Join(root, "state.toml")
}

// ModsRoot holds the assembled mod directories of the current batch.
func ModsRoot(root string) string {
	return filepath.Join(root, "mods")
}

// TempRoot is the extraction scratch area.
func TempRoot(root string) string {
	return filepath.Join(root, "temp")
}

// OverlayRoot is the live overlay mounted by the external tool.
func OverlayRoot(root string) string {
	return filepath.Join(root, "overlay")
}

// StagingOverlayRoot receives a fresh build before it replaces OverlayRoot.
func StagingOverlayRoot(root string) string {
	return filepath.Join(root, "temp_overlay")
}

// OverlayConfigPath is the small JSON config handed to runoverlay.
func OverlayConfigPath(root string) string {
	return filepath.Join(root, "config.json")
}

func ChampionsRoot(root string) string {
	return filepath.Join(root, "champions")
}

func CustomSkinsRoot(root string) string {
	return filepath.Join(root, "custom_skins")
}

func AuditPath(root string) string {
	return filepath.Join(root, "audit.log")
}
