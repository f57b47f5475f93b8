package discover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/tgenstats/internal/model"
	"github.com/tinytelemetry/tgenstats/internal/testutil"
)

func compile(t *testing.T, exprs ...string) []*regexp.Regexp {
	t.Helper()
	patterns, err := CompilePatterns(exprs)
	if err != nil {
		t.Fatalf("CompilePatterns: %v", err)
	}
	return patterns
}

func TestFind_WalksSubtree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteLog(t, root, "hosts/server1/tgen.server1.log")
	testutil.WriteLog(t, root, "hosts/client1/tgen.client1.log.xz")
	testutil.WriteLog(t, root, "hosts/client1/stdout-tor.log")
	testutil.WriteLog(t, root, "hosts/a/mytgen-1.log")
	testutil.WriteLog(t, root, "tgen.log")

	got, err := Find(root, compile(t, model.DefaultPattern))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := []string{
		filepath.Join(root, "hosts/a/mytgen-1.log"),
		filepath.Join(root, "hosts/client1/tgen.client1.log.xz"),
		filepath.Join(root, "hosts/server1/tgen.server1.log"),
		filepath.Join(root, "tgen.log"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Find mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_AnyPatternSelects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteLog(t, root, "tgen.log")
	testutil.WriteLog(t, root, "oniontrace.log")
	testutil.WriteLog(t, root, "shadow.log")

	got, err := Find(root, compile(t, model.DefaultPattern, `^onion`))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := []string{
		filepath.Join(root, "oniontrace.log"),
		filepath.Join(root, "tgen.log"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Find mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_MatchesBaseNameOnly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteLog(t, root, "tgen.logs/other.txt")

	got, err := Find(root, compile(t, model.DefaultPattern))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Find = %v, want nothing", got)
	}
}

func TestFind_FollowsFileSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := testutil.WriteLog(t, t.TempDir(), "data.txt")
	link := filepath.Join(root, "tgen.link.log")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink: %v", err)
	}

	got, err := Find(root, compile(t, model.DefaultPattern))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if diff := cmp.Diff([]string{link}, got); diff != "" {
		t.Fatalf("Find mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_Stdin(t *testing.T) {
	t.Parallel()

	for _, root := range []string{"-", "/tmp/run/-", "/tmp/run/./-"} {
		got, err := Find(root, nil)
		if err != nil {
			t.Fatalf("Find(%q): %v", root, err)
		}
		if diff := cmp.Diff([]string{model.StdinPath}, got); diff != "" {
			t.Fatalf("Find(%q) mismatch (-want +got):\n%s", root, diff)
		}
	}
}

func TestIsStdin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root string
		want bool
	}{
		{"-", true},
		{"/data/-", true},
		{"/data/-/", true},
		{"/data/x-", false},
		{"/data", false},
		{"./-", true},
		{"--", false},
	}
	for _, tt := range tests {
		if got := IsStdin(tt.root); got != tt.want {
			t.Errorf("IsStdin(%q) = %v, want %v", tt.root, got, tt.want)
		}
	}
}

func TestFind_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Find(filepath.Join(t.TempDir(), "nope"), compile(t, model.DefaultPattern))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestFind_NoPatterns(t *testing.T) {
	t.Parallel()

	if _, err := Find(t.TempDir(), nil); !errors.Is(err, ErrNoPatterns) {
		t.Fatalf("err = %v, want ErrNoPatterns", err)
	}
}

func TestCompilePatterns_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := CompilePatterns([]string{model.DefaultPattern, "tgen(["}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}
