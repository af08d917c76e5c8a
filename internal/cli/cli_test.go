package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// clearEnv keeps the developer's VMANAGER_* variables out of the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"VMANAGER_HOST", "VMANAGER_PORT", "VMANAGER_NODE", "VMANAGER_TOKEN_ID", "VMANAGER_TOKEN_SECRET", "VMANAGER_VERIFY_TLS"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vmanager.toml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return p
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	s := &session{}
	t.Cleanup(s.close)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(s)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestList_Mock(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "[server]\nnode = \"pve\"\n")

	out, err := run(t, "", "--config", cfg, "--mock", "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	for _, want := range []string{"gateway", "db-primary", "win-build"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "vmbr0") {
		t.Fatalf("plain list should not show details:\n%s", out)
	}

	out, err = run(t, "", "--config", cfg, "--mock", "list", "-v")
	if err != nil {
		t.Fatalf("list -v error: %v", err)
	}
	if !strings.Contains(out, "vmbr1") || !strings.Contains(out, "/etc/pve/") {
		t.Fatalf("verbose list missing details:\n%s", out)
	}
}

func TestList_FilterAndJSON(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "[server]\nnode = \"pve\"\n")

	out, err := run(t, "", "--config", cfg, "--mock", "list", "--name", "web-*", "-o", "json")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	var got []struct {
		ID     int     `json:"vmid"`
		Name   string  `json:"name"`
		Bridge *string `json:"bridge"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if len(got) != 2 || got[0].Name != "web-01" || got[1].Name != "web-02" {
		t.Fatalf("filtered = %+v", got)
	}
	if got[0].Bridge != nil {
		t.Fatalf("bridge = %q, want null without -v", *got[0].Bridge)
	}

	out, err = run(t, "", "--config", cfg, "--mock", "list", "--state", "stopped", "-o", "yaml")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, "name: ci-runner") || strings.Contains(out, "name: gateway") {
		t.Fatalf("state filter output:\n%s", out)
	}
}

func TestList_Validation(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad state", args: []string{"list", "--state", "sleeping"}},
		{name: "bad format", args: []string{"list", "-o", "xml"}},
		{name: "bad status id", args: []string{"status", "abc"}},
		{name: "zero status id", args: []string{"status", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", append([]string{"--config", cfg, "--mock"}, tt.args...)...)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "[server]\nhost = \"10.0.0.5\"\n")

	_, err := run(t, "", "--config", cfg, "list")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Reason, "auth.token_id") {
		t.Fatalf("error = %v, want missing auth fields", err)
	}
}

func TestActions_Mock(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "")

	out, err := run(t, "", "--config", cfg, "--mock", "stop", "100", "101")
	if err != nil {
		t.Fatalf("stop error: %v", err)
	}
	if strings.Count(out, "✓") != 2 || !strings.Contains(out, "2 ok, 0 failed") {
		t.Fatalf("stop output:\n%s", out)
	}

	// 120 is already stopped
	out, err = run(t, "", "--config", cfg, "--mock", "stop", "110,120")
	if !errors.Is(err, errFailures) {
		t.Fatalf("error = %v, want errFailures", err)
	}
	if !strings.Contains(out, "✗ 120") || !strings.Contains(out, "VM 120 not running") {
		t.Fatalf("stop output:\n%s", out)
	}

	if _, err := run(t, "", "--config", cfg, "--mock", "restart", "100"); err != nil {
		t.Fatalf("restart alias error: %v", err)
	}
	if _, err := run(t, "", "--config", cfg, "--mock", "start", "5-1"); err == nil {
		t.Fatalf("start 5-1 error = nil, want validation error")
	}
}

func TestDestroy_Confirmation(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "")

	tests := []struct {
		name    string
		stdin   string
		args    []string
		deleted bool
	}{
		{name: "yes", stdin: "yes\n", args: []string{"destroy", "120"}, deleted: true},
		{name: "no", stdin: "no\n", args: []string{"destroy", "120"}},
		{name: "y is not enough", stdin: "y\n", args: []string{"destroy", "120"}},
		{name: "trailing space", stdin: "yes \n", args: []string{"destroy", "120"}},
		{name: "eof", stdin: "", args: []string{"destroy", "120"}},
		{name: "force", args: []string{"destroy", "-f", "120"}, deleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, append([]string{"--config", cfg, "--mock"}, tt.args...)...)
			if err != nil {
				t.Fatalf("destroy error: %v", err)
			}
			if tt.deleted != strings.Contains(out, "✓ 120 destroy") {
				t.Fatalf("deleted = %v, output:\n%s", !tt.deleted, out)
			}
			if !tt.deleted && !strings.Contains(out, "cancelled") {
				t.Fatalf("declined destroy output:\n%s", out)
			}
		})
	}
}

// fakeNode is a TLS api2/json endpoint with two VMs; starting 101 fails.
type fakeNode struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "PVEAPIToken=root@pam!ci=s3cret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api2/json/nodes/pve/qemu":
		_, _ = w.Write([]byte(`{"data":[
			{"vmid":101,"name":"db","status":"stopped","cpus":2,"maxmem":2147483648},
			{"vmid":100,"name":"web","status":"running","qmpstatus":"running","cpus":4,"cpu":0.5,"mem":1610612736,"maxmem":4294967296,"uptime":3600}
		]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api2/json/nodes/pve/qemu/101/status/start":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"data":null,"message":"VM 101 is locked (backup)"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/status/start"):
		_, _ = w.Write([]byte(`{"data":"UPID:pve:0001:qmstart:100:root@pam:"}`))
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func fakeNodeConfig(t *testing.T, f *fakeNode) string {
	t.Helper()
	srv := httptest.NewTLSServer(f)
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort() error: %v", err)
	}
	return writeConfig(t, `
[server]
host = "`+host+`"
port = `+port+`
node = "pve"
verify_tls = false

[auth]
token_id = "root@pam!ci"
token_secret = "s3cret"
`)
}

func TestAgainstNode(t *testing.T) {
	clearEnv(t)
	f := &fakeNode{}
	cfg := fakeNodeConfig(t, f)

	out, err := run(t, "", "--config", cfg, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if strings.Index(out, "web") > strings.Index(out, "db") {
		t.Fatalf("rows not sorted by id:\n%s", out)
	}
	if !strings.Contains(out, "1h 0m") || !strings.Contains(out, "1.5 GB / 4.0 GB") {
		t.Fatalf("list output:\n%s", out)
	}
	f.mu.Lock()
	for _, c := range f.calls {
		if strings.HasSuffix(c, "/config") || strings.Contains(c, "/agent/") {
			t.Fatalf("plain list made a detail call: %s", c)
		}
	}
	f.mu.Unlock()

	out, err = run(t, "", "--config", cfg, "start", "100-101")
	if !errors.Is(err, errFailures) {
		t.Fatalf("start error = %v, want errFailures", err)
	}
	if !strings.Contains(out, "UPID:pve:0001:qmstart:100:root@pam:") || !strings.Contains(out, "VM 101 is locked (backup)") {
		t.Fatalf("start output:\n%s", out)
	}
}

func TestWrongNode(t *testing.T) {
	clearEnv(t)
	f := &fakeNode{}
	cfg := fakeNodeConfig(t, f)

	if _, err := run(t, "", "--config", cfg, "--node", "pve9", "list"); err == nil {
		t.Fatalf("list on unknown node error = nil, want error")
	}
}

func TestConfigInit(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "new.toml")
	args := []string{"--config", p, "config", "init", "--host", "10.0.0.5", "--token-id", "root@pam!vm", "--token-secret", "abc"}

	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("config init error: %v", err)
	}
	if !strings.Contains(out, p) {
		t.Fatalf("config init output = %q", out)
	}
	st, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", st.Mode().Perm())
	}

	if _, err := run(t, "", args...); err == nil {
		t.Fatalf("second config init error = nil, want refusal")
	}
	if _, err := run(t, "", append(args, "--force")...); err != nil {
		t.Fatalf("config init --force error: %v", err)
	}

	out, err = run(t, "", "--config", p, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if strings.Contains(out, "abc") || !strings.Contains(out, "10.0.0.5") {
		t.Fatalf("config show output:\n%s", out)
	}

	if _, err := run(t, "", "--config", filepath.Join(t.TempDir(), "x.toml"), "config", "init", "--host", "h"); err == nil {
		t.Fatalf("config init without token error = nil, want error")
	}
}

func TestStatus_Mock(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "")

	out, err := run(t, "", "--config", cfg, "--mock", "status", "101")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	for _, want := range []string{"web-01", "running", "vmbr0", "local-lvm", "192.168.10.21", "qemu-server/101.conf", " / 64.0 GB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}

	// stopped guests have no agent answer
	out, err = run(t, "", "--config", cfg, "--mock", "status", "120")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(out, "IP:      N/A") {
		t.Fatalf("status output for a stopped vm:\n%s", out)
	}

	out, err = run(t, "", "--config", cfg, "--mock", "status", "101", "-o", "json")
	if err != nil {
		t.Fatalf("status -o json error: %v", err)
	}
	var rec struct {
		Bridge string `json:"bridge"`
		IP     string `json:"ip"`
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil || rec.Bridge != "vmbr0" || rec.IP != "192.168.10.21" {
		t.Fatalf("status json = %+v, %v\n%s", rec, err, out)
	}
}

func TestStart_MockArgs(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "")

	// 120 is stopped in the demo fleet
	out, err := run(t, "", "--config", cfg, "--mock", "start", "120")
	if err != nil {
		t.Fatalf("start 120 error: %v", err)
	}
	if !strings.Contains(out, "✓ 120 start UPID:") {
		t.Fatalf("start 120 output:\n%s", out)
	}

	// separate args and ranges form one expression; all three are running
	out, err = run(t, "", "--config", cfg, "--mock", "start", "100", "101-102")
	if !errors.Is(err, errFailures) {
		t.Fatalf("start error = %v, want errFailures", err)
	}
	for _, id := range []string{"✗ 100", "✗ 101", "✗ 102"} {
		if !strings.Contains(out, id) {
			t.Fatalf("start output missing %q:\n%s", id, out)
		}
	}
	if !strings.Contains(out, "0 ok, 3 failed") || !strings.Contains(out, "already running") {
		t.Fatalf("start output:\n%s", out)
	}
}
