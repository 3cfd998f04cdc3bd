//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
	"github.com/eliteGoblin/focusd/totalctl/internal/policy"
	"github.com/eliteGoblin/focusd/totalctl/internal/usecase"
)

// copyExecutable copies src to dst with exec permissions.
func copyExecutable(t *testing.T, src, dst string) {
	t.Helper()
	in, err := os.Open(src)
	if err != nil {
		t.Skipf("cannot open %s: %v", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY, 0755)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		t.Fatal(err)
	}
}

func TestSweep_KillsBlockedProcess(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	// A uniquely named copy so the sweep cannot touch anything else.
	fake := filepath.Join(t.TempDir(), "tcfakegame")
	copyExecutable(t, sleepPath, fake)

	cmd := exec.Command(fake, "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start fake game: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	defer func() { _ = cmd.Process.Kill() }()

	logger, _ := zap.NewDevelopment()
	catalog := policy.NewRegistryWithPolicies(
		policy.NewSitePolicy("fakegame", "Fake Game", nil, []string{"tcfakegame"}),
	)
	hosts := infra.NewHostsFileWithPath(filepath.Join(t.TempDir(), "hosts"))
	enforcer := usecase.NewEnforcementEngine(hosts, nil, infra.NewProcessManager(), catalog, logger)

	ctx := context.Background()
	if _, err := enforcer.Update(ctx, []string{"fakegame"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Give the process a moment to appear in the process table.
	time.Sleep(100 * time.Millisecond)

	result := enforcer.Sweep(ctx)
	if len(result.KilledPIDs) != 1 || result.KilledPIDs[0] != cmd.Process.Pid {
		t.Fatalf("expected pid %d killed, got %v (errors: %v)", cmd.Process.Pid, result.KilledPIDs, result.Errors)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fake game still running after sweep")
	}
}

func TestSweep_IgnoresUnblockedItems(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	hosts := infra.NewHostsFileWithPath(filepath.Join(t.TempDir(), "hosts"))
	enforcer := usecase.NewEnforcementEngine(hosts, nil, infra.NewProcessManager(), policy.NewRegistry(), logger)

	ctx := context.Background()
	if _, err := enforcer.Update(ctx, []string{"youtube"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	result := enforcer.Sweep(ctx)
	if len(result.KilledPIDs) != 0 {
		t.Fatalf("expected no kills for a site-only item, got %v", result.KilledPIDs)
	}
}
