package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"skinjector/internal/store"
)

func TestIndexImportAndDoctor(t *testing.T) {
	home := t.TempDir()
	bin, env := buildCLI(t, home)
	env = gameLayout(t, home, env)
	cfgPath := filepath.Join(home, ".skinjector", "config.toml")

	out := runCLI(t, bin, env, "--config", cfgPath, "index")
	assertContains(t, out, "1 champion(s), 1 archive(s)")

	src := filepath.Join(home, "Downloads", "Neon.fantome")
	writeFile(t, src, "PK")
	out = runCLI(t, bin, env, "--config", cfgPath, "--json", "import", "103", src)
	var rec store.CustomSkin
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode import output: %v\n%s", err, out)
	}
	if rec.ChampionName != "Ahri" {
		t.Fatalf("expected champion Ahri, got %q", rec.ChampionName)
	}
	assertContains(t, runCLI(t, bin, env, "--config", cfgPath, "custom", "list"), rec.ID)

	// Game.cfg is absent until the first injection: a warning, not an error.
	out = runCLI(t, bin, env, "--config", cfgPath, "doctor")
	assertContains(t, out, "GAME_CFG_MODS_DISABLED")
}

func TestInjectRollbackOnInjectedCommitFailure(t *testing.T) {
	home := t.TempDir()
	bin, env := buildCLI(t, home)
	env = gameLayout(t, home, env)
	cfgPath := filepath.Join(home, ".skinjector", "config.toml")

	out, _ := runCLIExpectFail(t, bin, env, map[string]string{"SKINJECTOR_TEST_FAIL_COMMIT": "Ahri 103001 Star Guardian"},
		"--config", cfgPath, "inject", "103:103001")
	assertContains(t, out, "INS_TEST_FAIL_COMMIT")

	entries, err := os.ReadDir(filepath.Join(home, "League", "Game", "mods"))
	if err != nil {
		t.Fatalf("read game mods: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rollback to leave no mods, found %d", len(entries))
	}
	st, err := store.LoadState(filepath.Join(home, ".skinjector"))
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.Session.State != "idle" || st.Session.LastError == "" {
		t.Fatalf("expected failed session recorded, got %+v", st.Session)
	}
}

func TestInjectMissingArchiveExitCode(t *testing.T) {
	home := t.TempDir()
	bin, env := buildCLI(t, home)
	env = gameLayout(t, home, env)
	cfgPath := filepath.Join(home, ".skinjector", "config.toml")

	out, code := runCLIExpectFail(t, bin, env, nil, "--config", cfgPath, "inject", "103:103099")
	assertContains(t, out, "INJ_MISSING_ARCHIVE")
	if code != 4 {
		t.Fatalf("expected exit code 4, got %d", code)
	}
}
