package store

import "time"

const StateVersion = 1

type State struct {
	Version     int          `toml:"version"`
	Session     Session      `toml:"session"`
	CustomSkins []CustomSkin `toml:"custom_skins"`
}

// Session is the last injection cycle as seen by the injector.
type Session struct {
	State      string            `toml:"state,omitempty"`
	Selections []SelectionRecord `toml:"selections,omitempty"`
	Mods       []AppliedMod      `toml:"mods,omitempty"`
	PID        int               `toml:"pid,omitempty"`
	ToolPath   string            `toml:"tool_path,omitempty"`
	LastError  string            `toml:"last_error,omitempty"`
	StartedAt  time.Time         `toml:"started_at"`
	UpdatedAt  time.Time         `toml:"updated_at"`
}

type SelectionRecord struct {
	ChampionID uint32  `toml:"champion_id"`
	SkinID     uint32  `toml:"skin_id"`
	ChromaID   *uint32 `toml:"chroma_id,omitempty"`
	Archive    string  `toml:"archive,omitempty"`
}

type AppliedMod struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
	Shape   string `toml:"shape"`
	Archive string `toml:"archive"`
}

type CustomSkin struct {
	ID           string    `toml:"id"`
	Name         string    `toml:"name"`
	ChampionID   uint32    `toml:"champion_id"`
	ChampionName string    `toml:"champion_name,omitempty"`
	Path         string    `toml:"path"`
	ImportedAt   time.Time `toml:"imported_at"`
}
