package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/tgenstats/internal/duckdb"
	"github.com/tinytelemetry/tgenstats/internal/pipeline"
	"github.com/tinytelemetry/tgenstats/internal/testutil"
)

// writeSimulation lays out a small shadow data directory: two servers, one
// client and a host that never announced itself.
func writeSimulation(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteLog(t, root, "hosts/server1/tgen.server1.log",
		testutil.IdentityLine("server1"),
		testutil.HeartbeatLine(1010),
		testutil.SuccessLine(1050, "server1", "bulkclient1", 1048576),
		testutil.SuccessLine(1050.9, "server1", "bulkclient1", 24),
		testutil.SuccessLine(1051, "server1", "webclient1", 512),
		testutil.ErrorLine(1060, "server1", "bulkclient1"),
	)
	testutil.WriteLog(t, root, "hosts/server2/tgen.server2.log",
		testutil.IdentityLine("server2"),
		testutil.SuccessLine(1240, "server2", "bulkclient2", 99),
		testutil.SuccessLine(1300, "server2", "bulkclient2", 1),
	)
	testutil.WriteLog(t, root, "hosts/bulkclient1/tgen.bulkclient1.log",
		testutil.IdentityLine("bulkclient1"),
		testutil.SuccessLine(1050, "bulkclient1", "server1", 1048576),
	)
	testutil.WriteLog(t, root, "hosts/orphan/tgen.orphan.log",
		testutil.SuccessLine(1050, "orphan", "server1", 7),
	)
	testutil.WriteLog(t, root, "hosts/server1/shadow.log", "ignored")
	return root
}

type resultDoc struct {
	Nodes map[string]map[string][]int64 `json:"nodes"`
}

func readResult(t *testing.T, path string) (resultDoc, []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var doc resultDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return doc, data
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_EndToEnd(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)
	out := filepath.Join(t.TempDir(), "stats")

	code, stdout, stderr := runCLI(t, "--compression", "none", "-p", out, "-m", "2", root)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr)
	}

	doc, data := readResult(t, filepath.Join(out, "server.stats.tgen.json"))
	if bytes.HasSuffix(data, []byte("\n")) {
		t.Error("document ends with a newline")
	}

	var names []string
	for name := range doc.Nodes {
		names = append(names, name)
	}
	if len(names) != 2 || doc.Nodes["server1"] == nil || doc.Nodes["server2"] == nil {
		t.Fatalf("nodes = %v, want server1 and server2", names)
	}
	s1 := doc.Nodes["server1"]
	if len(s1["bulkclient1"]) != 240 {
		t.Fatalf("series length = %d, want 240", len(s1["bulkclient1"]))
	}
	if got := s1["bulkclient1"][49]; got != 1048600 {
		t.Errorf("server1/bulkclient1[49] = %d, want 1048600", got)
	}
	if got := s1["webclient1"][50]; got != 512 {
		t.Errorf("server1/webclient1[50] = %d, want 512", got)
	}
	if got := doc.Nodes["server2"]["bulkclient2"][239]; got != 99 {
		t.Errorf("server2/bulkclient2[239] = %d, want 99", got)
	}

	for _, want := range []string{
		"processing input from 4 files...",
		"done processing input: 6 total successes, 1 total errors, 3 files with names, 1 files without names",
		"all done!",
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if !strings.Contains(stdout, filepath.Join(out, "server.stats.tgen.json")) {
		t.Errorf("summary does not name the document:\n%s", stdout)
	}
}

func TestExecute_WorkerCountDoesNotChangeOutput(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)

	var docs [][]byte
	for _, m := range []string{"1", "4", "0"} {
		out := t.TempDir()
		if code, _, stderr := runCLI(t, "--compression", "none", "-p", out, "-m", m, root); code != exitOK {
			t.Fatalf("-m %s exit = %d, stderr:\n%s", m, code, stderr)
		}
		_, data := readResult(t, filepath.Join(out, "server.stats.tgen.json"))
		docs = append(docs, data)
	}
	for i := 1; i < len(docs); i++ {
		if !bytes.Equal(docs[0], docs[i]) {
			t.Fatal("output differs between worker counts")
		}
	}
}

func TestExecute_Stdin(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)
	out := t.TempDir()

	f, err := os.Open(filepath.Join(root, "hosts/server2/tgen.server2.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	oldStdin := os.Stdin
	os.Stdin = f
	t.Cleanup(func() { os.Stdin = oldStdin })

	if code, _, stderr := runCLI(t, "--compression", "none", "-p", out, "-"); code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr)
	}
	doc, _ := readResult(t, filepath.Join(out, "server.stats.tgen.json"))
	if diff := cmp.Diff([]string{"bulkclient2"}, keys(doc.Nodes["server2"])); diff != "" {
		t.Fatalf("server2 peers mismatch (-want +got):\n%s", diff)
	}
}

func keys(m map[string][]int64) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestExecute_DuckDBAndArchive(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)
	out := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "series.duckdb")
	archive := filepath.Join(t.TempDir(), "archive")

	code, stdout, stderr := runCLI(t, "--compression", "gzip", "-p", out, "--db-path", dbPath, "--archive-dir", archive, root)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr)
	}

	store, err := duckdb.NewStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	run, err := store.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Nodes != 2 || run.Successes != 6 || run.Errors != 1 {
		t.Fatalf("run = %+v, want 2 nodes, 6 successes, 1 error", run)
	}
	series, err := store.PeerSeries(context.Background(), run.ID, "server1", "bulkclient1")
	if err != nil {
		t.Fatalf("PeerSeries: %v", err)
	}
	if diff := cmp.Diff(map[int]int64{1050: 1048600}, series); diff != "" {
		t.Fatalf("series mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(archive)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".stats.tgen.json.gz") {
		t.Fatalf("archive = %v, want one gzip document", entries)
	}
	if !strings.Contains(stdout, archive) {
		t.Errorf("summary does not name the archived copy:\n%s", stdout)
	}
}

func TestRun_CancelledWritesNothing(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)
	out := filepath.Join(t.TempDir(), "stats")

	cfg, err := loadConfig(parseFlags(t, "--compression", "none", "-p", out), "", root)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout bytes.Buffer
	if err := run(ctx, cfg, &stdout); !errors.Is(err, pipeline.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("prefix exists after interrupt (stat err %v)", err)
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	isolateHome(t)
	root := writeSimulation(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no path", nil, exitUsage},
		{"two paths", []string{root, root}, exitUsage},
		{"negative multiproc", []string{"-m", "-1", root}, exitUsage},
		{"unknown compression", []string{"--compression", "lzma", root}, exitUsage},
		{"unknown flag", []string{"--bogus", root}, exitUsage},
		{"missing root", []string{"-p", t.TempDir(), filepath.Join(root, "nope")}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, stderr := runCLI(t, tt.args...); code != tt.want {
				t.Fatalf("exit = %d, want %d, stderr:\n%s", code, tt.want, stderr)
			}
		})
	}
}

func TestExecute_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Version:    dev") {
		t.Fatalf("version output:\n%s", stdout)
	}
}
