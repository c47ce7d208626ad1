package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		tmp := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmp)

		dir, err := GetConfigDir()
		if err != nil {
			t.Fatalf("GetConfigDir() error = %v", err)
		}
		if want := filepath.Join(tmp, "multicontroller"); dir != want {
			t.Errorf("GetConfigDir() = %v, want %v", dir, want)
		}
		return
	}

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(dir, "multicontroller") {
		t.Errorf("GetConfigDir() = %v, should contain 'multicontroller'", dir)
	}
}

func TestGetRegistryPath(t *testing.T) {
	path, err := GetRegistryPath()
	if err != nil {
		t.Fatalf("GetRegistryPath() error = %v", err)
	}
	if filepath.Base(path) != "entries.yaml" {
		t.Errorf("GetRegistryPath() should end with 'entries.yaml', got: %v", path)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Entries == nil {
		t.Error("NewRegistry().Entries should not be nil")
	}
}

func TestRegistry_AddEntry(t *testing.T) {
	reg := NewRegistry()

	id, entry, err := reg.AddEntry("https://api.example", "user@example.com", "0.0.6")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if len(id) != 36 {
		t.Errorf("entry id = %q, want a uuid", id)
	}
	if entry.CreatedAt.IsZero() || entry.IntegrationVersion != "0.0.6" {
		t.Errorf("entry = %+v", entry)
	}
	if reg.GetEntry(id) != entry {
		t.Error("GetEntry() did not return the added entry")
	}

	if _, _, err := reg.AddEntry("https://api.example", "user@example.com", "0.0.6"); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("duplicate AddEntry() error = %v, want ErrAlreadyConfigured", err)
	}
	if ErrAlreadyConfigured.Error() != "already_configured" {
		t.Errorf("error key = %q, want already_configured", ErrAlreadyConfigured.Error())
	}

	// Same user on another host is a different account
	if _, _, err := reg.AddEntry("https://other.example", "user@example.com", "0.0.6"); err != nil {
		t.Errorf("AddEntry() on other host error = %v", err)
	}
	if len(reg.EntryIDs()) != 2 {
		t.Errorf("len(EntryIDs()) = %d, want 2", len(reg.EntryIDs()))
	}
}

func TestRegistry_RemoveEntry(t *testing.T) {
	reg := NewRegistry()
	id, _, _ := reg.AddEntry("h", "u", "0.0.6")

	if !reg.RemoveEntry(id) {
		t.Error("RemoveEntry() = false, want true")
	}
	if reg.RemoveEntry(id) {
		t.Error("second RemoveEntry() = true, want false")
	}
	if found, _ := reg.FindEntry("h", "u"); found != "" {
		t.Errorf("FindEntry() = %q after removal", found)
	}
}

func TestEntry_Entities(t *testing.T) {
	entry := &Entry{}

	if entry.Lookup("switch", "e1_n1_boost") {
		t.Error("Lookup() on empty entry = true")
	}
	_ = entry.Register("switch", "e1_n1_boost")
	_ = entry.Register("switch", "e1_n1_boost")
	_ = entry.Register("climate", "e1_n1_climate")

	if !entry.Lookup("switch", "e1_n1_boost") {
		t.Error("Lookup() after Register = false")
	}
	if entry.Lookup("sensor", "e1_n1_boost") {
		t.Error("Lookup() must be scoped by platform")
	}
	if entry.EntityCount() != 2 {
		t.Errorf("EntityCount() = %d, want 2", entry.EntityCount())
	}
	if n := entry.RemoveEntities(); n != 2 || entry.EntityCount() != 0 {
		t.Errorf("RemoveEntities() = %d, EntityCount() = %d", n, entry.EntityCount())
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "entries.yaml")

	reg := NewRegistry()
	id, entry, _ := reg.AddEntry("https://api.example", "user", "0.0.6")
	_ = entry.Register("climate", id+"_n1_climate")

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "password:") {
		t.Error("registry file must not contain a password")
	}

	loaded, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	got := loaded.GetEntry(id)
	if got == nil {
		t.Fatal("entry missing after reload")
	}
	if got.Username != "user" || !got.Lookup("climate", id+"_n1_climate") {
		t.Errorf("loaded entry = %+v", got)
	}
}

func TestLoadRegistryFile_Missing(t *testing.T) {
	reg, err := LoadRegistryFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if len(reg.Entries) != 0 {
		t.Errorf("len(Entries) = %d, want 0", len(reg.Entries))
	}
}

func TestLoadRegistryFile_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistryFile(path); err == nil {
		t.Error("LoadRegistryFile() should reject version 2")
	}
}

func TestMigrateEntry(t *testing.T) {
	entry := &Entry{IntegrationVersion: "0.0.5"}
	_ = entry.Register("sensor", "e1_n1_temp")

	if !MigrateEntry(entry, "0.0.6") {
		t.Error("MigrateEntry() = false for an old entry")
	}
	if entry.EntityCount() != 0 || entry.IntegrationVersion != "0.0.6" {
		t.Errorf("entry after migration = %+v", entry)
	}

	_ = entry.Register("sensor", "e1_n1_temp")
	if MigrateEntry(entry, "0.0.6") {
		t.Error("MigrateEntry() = true for a current entry")
	}
	if entry.EntityCount() != 1 {
		t.Error("current entry must keep its entities")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func TestLoadRegistry_SaveAndRemove(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME is only honored on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg, err := LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	id, _, err := reg.AddEntry("https://api.example.com", "user@example.com", "0.0.6")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reg, err = LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if reg.GetEntry(id) == nil {
		t.Fatalf("entry %s not persisted", id)
	}
	if !reg.RemoveEntry(id) {
		t.Fatal("RemoveEntry() = false for a saved entry")
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reg, err = LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(reg.Entries) != 0 {
		t.Errorf("len(Entries) = %d after remove, want 0", len(reg.Entries))
	}
}
