package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRepo(t *testing.T, dirs ...string) *Repository {
	t.Helper()
	return NewRepository(Options{
		Dirs:   dirs,
		Logger: discardLogger(),
	})
}

func skillContent(name string, keywords ...string) string {
	var sb strings.Builder
	sb.WriteString("---\nname: " + name + "\ntriggers:\n  keywords: [")
	sb.WriteString(strings.Join(keywords, ", "))
	sb.WriteString("]\n---\n# " + name + "\nInstructions for " + name + ".\n")
	return sb.String()
}

func TestRepositoryLoadDiscoversNestedSkills(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "top.skill.md", skillContent("top", "alpha"))
	writeSkill(t, dir, filepath.Join("review", "SKILL.md"), skillContent("review", "beta"))
	writeSkill(t, dir, filepath.Join("deep", "nested", "extra.skill.md"), skillContent("extra", "gamma"))
	// Pruned directories must not contribute skills.
	writeSkill(t, dir, filepath.Join("node_modules", "dep", "SKILL.md"), skillContent("vendored", "delta"))
	// Non-skill files are ignored.
	writeSkill(t, dir, "README.md", "# not a skill\n")

	repo := testRepo(t, dir)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if repo.Count() != 3 {
		t.Errorf("Expected 3 skills, got %d", repo.Count())
	}
	for _, name := range []string{"top", "review", "extra"} {
		if _, err := repo.Get(context.Background(), name); err != nil {
			t.Errorf("Expected skill %s: %v", name, err)
		}
	}
	if _, err := repo.Get(context.Background(), "vendored"); err == nil {
		t.Error("Expected node_modules skill to be pruned")
	}
}

func TestRepositoryNameConflictFirstDirWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeSkill(t, dirA, "x.skill.md", "---\nname: shared\ndescription: from A\ntriggers:\n  keywords: [a]\n---\nbody\n")
	writeSkill(t, dirB, "x.skill.md", "---\nname: shared\ndescription: from B\ntriggers:\n  keywords: [b]\n---\nbody\n")

	repo := testRepo(t, dirA, dirB)
	skill, err := repo.Get(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if skill.Description != "from A" {
		t.Errorf("Expected first directory to win, got description %q", skill.Description)
	}
}

func TestRepositoryWalkOrderFilesBeforeSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.skill.md", "---\nname: dup\ndescription: file level\n---\nbody\n")
	writeSkill(t, dir, filepath.Join("sub", "SKILL.md"), "---\nname: dup\ndescription: nested\n---\nbody\n")

	repo := testRepo(t, dir)
	skill, err := repo.Get(context.Background(), "dup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if skill.Description != "file level" {
		t.Errorf("Expected top-level file to win, got %q", skill.Description)
	}
}

func TestRepositoryCachesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	first := writeSkill(t, dir, "one.skill.md", skillContent("one", "alpha"))

	repo := NewRepository(Options{Dirs: []string{dir}, Logger: discardLogger(), TTL: time.Hour})
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 1 {
		t.Fatalf("Expected 1 skill, got %d", repo.Count())
	}

	// A new file is invisible while the scan is still trusted.
	writeSkill(t, dir, "two.skill.md", skillContent("two", "beta"))
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 1 {
		t.Errorf("Expected cached scan to hold, got %d skills", repo.Count())
	}

	// Touching a known file invalidates the scan early.
	bump := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(first, bump, bump); err != nil {
		t.Fatalf("Failed to bump mtime: %v", err)
	}
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 2 {
		t.Errorf("Expected rescan to pick up both skills, got %d", repo.Count())
	}
}

func TestRepositoryEmptyScanNotCached(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(Options{Dirs: []string{dir}, Logger: discardLogger(), TTL: time.Hour})

	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 0 {
		t.Fatalf("Expected empty repository, got %d", repo.Count())
	}

	// With nothing loaded, the next Load rescans even inside the TTL.
	writeSkill(t, dir, "late.skill.md", skillContent("late", "alpha"))
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 1 {
		t.Errorf("Expected new skill to appear, got %d", repo.Count())
	}
}

func TestRepositoryDeletedFileInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := writeSkill(t, dir, "gone.skill.md", skillContent("gone", "alpha"))

	repo := NewRepository(Options{Dirs: []string{dir}, Logger: discardLogger(), TTL: time.Hour})
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 1 {
		t.Fatalf("Expected 1 skill, got %d", repo.Count())
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove skill file: %v", err)
	}
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 0 {
		t.Errorf("Expected deleted skill to vanish, got %d", repo.Count())
	}
}

func TestRepositoryReusesUnchangedParse(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "stable.skill.md", skillContent("stable", "alpha"))

	// A nanosecond TTL forces a rescan on every Load.
	repo := NewRepository(Options{Dirs: []string{dir}, Logger: discardLogger(), TTL: time.Nanosecond})
	first, err := repo.Get(context.Background(), "stable")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := repo.Get(context.Background(), "stable")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first != second {
		t.Error("Expected unchanged file to reuse the parsed skill")
	}
}

func TestRepositoryMtimeChangeReparses(t *testing.T) {
	dir := t.TempDir()
	path := writeSkill(t, dir, "hot.skill.md", "---\nname: hot\ndescription: v1\n---\nbody\n")

	repo := NewRepository(Options{Dirs: []string{dir}, Logger: discardLogger(), TTL: time.Hour})
	skill, err := repo.Get(context.Background(), "hot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if skill.Description != "v1" {
		t.Fatalf("Expected v1, got %q", skill.Description)
	}

	if err := os.WriteFile(path, []byte("---\nname: hot\ndescription: v2\n---\nbody\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite skill: %v", err)
	}
	bump := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, bump, bump); err != nil {
		t.Fatalf("Failed to bump mtime: %v", err)
	}

	skill, err = repo.Get(context.Background(), "hot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if skill.Description != "v2" {
		t.Errorf("Expected reparse to v2, got %q", skill.Description)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := testRepo(t, t.TempDir())
	if _, err := repo.Get(context.Background(), "nope"); err == nil {
		t.Error("Expected an error for a missing skill")
	}
}

func TestRepositorySkillsSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeSkill(t, dir, name+".skill.md", skillContent(name, "kw"))
	}

	repo := testRepo(t, dir)
	skills, err := repo.Skills(context.Background())
	if err != nil {
		t.Fatalf("Skills failed: %v", err)
	}
	if len(skills) != 3 {
		t.Fatalf("Expected 3 skills, got %d", len(skills))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, s := range skills {
		if s.Name != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, s.Name)
		}
	}
}

func TestRepositorySymlinkEscapeExcluded(t *testing.T) {
	outside := t.TempDir()
	target := filepath.Join(outside, "escape.skill.md")
	if err := os.WriteFile(target, []byte(skillContent("escape", "kw")), 0o644); err != nil {
		t.Fatalf("Failed to write target: %v", err)
	}

	dir := t.TempDir()
	if err := os.Symlink(target, filepath.Join(dir, "link.skill.md")); err != nil {
		t.Skipf("Symlinks unavailable: %v", err)
	}

	repo := testRepo(t, dir)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if repo.Count() != 0 {
		t.Errorf("Expected escaping symlink to be excluded, got %d skills", repo.Count())
	}
}

func TestRepositoryLoadCancelled(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "x.skill.md", skillContent("x", "kw"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := testRepo(t, dir)
	if err := repo.Load(ctx); err == nil {
		t.Error("Expected a context error from a cancelled load")
	}
}

func TestDiscoverDirsOrder(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := filepath.Join(root, ".trellis", "skills")
	cursor := filepath.Join(home, ".cursor", "skills")
	claude := filepath.Join(home, ".claude", "skills")
	for _, d := range []string{project, cursor, claude} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
	}

	dirs := discoverDirs(root)
	if len(dirs) != 3 {
		t.Fatalf("Expected 3 dirs, got %d: %v", len(dirs), dirs)
	}
	for i, want := range []string{project, cursor, claude} {
		resolved, _ := filepath.EvalSymlinks(want)
		if dirs[i] != resolved {
			t.Errorf("Expected %s at %d, got %s", resolved, i, dirs[i])
		}
	}
}

func TestDiscoverDirsSkipsMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cursor := filepath.Join(home, ".cursor", "skills")
	if err := os.MkdirAll(cursor, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	dirs := discoverDirs("")
	if len(dirs) != 1 {
		t.Fatalf("Expected 1 dir, got %d: %v", len(dirs), dirs)
	}
	resolved, _ := filepath.EvalSymlinks(cursor)
	if dirs[0] != resolved {
		t.Errorf("Expected %s, got %s", resolved, dirs[0])
	}
}
