// Package testutil builds tgen log fixtures for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// IdentityLine returns the line tgen prints once at startup naming its host.
func IdentityLine(host string) string {
	return fmt.Sprintf("1970-01-01 00:00:01 1.000000 [message] [shd-tgen-main.c:87] [_tgenmain_run] "+
		"Initializing traffic generator on host %s process id 1234", host)
}

// SuccessLine returns a checksum line reporting bytes received from peer by
// host at simulated time ts.
func SuccessLine(ts float64, host, peer string, bytes int64) string {
	return fmt.Sprintf("1970-01-01 00:17:30 %f [message] [shd-tgen-transfer.c:520] [_tgentransfer_readChecksum] "+
		"[transfer-complete] TCP,3976,NULL:216.58.218.174:80,NULL:0.0.0.0:0,%s:11.0.0.1:28599,state=SUCCESS,error=NONE "+
		"transfer transfer2,56,%s,GET,%d,%s,2,state=SUCCESS,error=NONE total-bytes-read=%d",
		ts, peer, host, bytes, peer, bytes+94)
}

// ErrorLine returns a checksum line reporting a failed transfer.
func ErrorLine(ts float64, host, peer string) string {
	return fmt.Sprintf("1970-01-01 00:17:31 %f [message] [shd-tgen-transfer.c:520] [_tgentransfer_readChecksum] "+
		"[transfer-error] TCP,3977,NULL:216.58.218.174:80,NULL:0.0.0.0:0,%s:11.0.0.1:28600,state=ERROR,error=READ "+
		"transfer transfer3,57,%s,GET,1048576,%s,2,state=ERROR,error=READ total-bytes-read=0",
		ts, peer, host, peer)
}

// HeartbeatLine returns a line that matches neither identity nor checksum.
func HeartbeatLine(ts float64) string {
	return fmt.Sprintf("1970-01-01 00:17:32 %f [message] [shd-tgen-driver.c:126] [_tgendriver_onHeartbeat] "+
		"[driver-heartbeat] bytes-read=0 bytes-written=0", ts)
}

// WriteLog writes lines to dir/name, creating parent directories, and
// returns the full path.
func WriteLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
