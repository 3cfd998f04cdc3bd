// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// Managed region markers and the sinkhole address.
const (
	MarkerStart     = "# === TOTALCONTROL START ==="
	MarkerEnd       = "# === TOTALCONTROL END ==="
	LoopbackAddress = "127.0.0.1"
)

// managedRegion matches the marked block plus the blank separator line
// written before it.
var managedRegion = regexp.MustCompile(`(?m)(?:^\n)?^` + regexp.QuoteMeta(MarkerStart) + `$(?s:.*?)^` + regexp.QuoteMeta(MarkerEnd) + `$\n?`)

// ItemCatalog maps logical items to concrete blocklist entries.
// Implementation: policy.Registry.
type ItemCatalog interface {
	Resolve(item string) []string
	ProcessPatterns(item string) []string
}

// EnforcementEngine reconciles the blocked-item set with the hosts file and
// the process table. Update and Clear serialize on one lock covering the
// compare, read, modify and write of the hosts file. Sweep runs independently.
type EnforcementEngine struct {
	hosts          domain.HostsFile
	dns            domain.DNSFlusher
	processManager domain.ProcessManager
	catalog        ItemCatalog
	logger         *zap.Logger

	hostsMu sync.Mutex
	// applied is nil until the first successful write, so the first Update
	// always reconciles the file.
	applied map[string]struct{}

	desiredMu sync.RWMutex
	desired   []string
}

// NewEnforcementEngine creates a new enforcement engine. dns may be nil.
func NewEnforcementEngine(
	hosts domain.HostsFile,
	dns domain.DNSFlusher,
	pm domain.ProcessManager,
	catalog ItemCatalog,
	logger *zap.Logger,
) *EnforcementEngine {
	return &EnforcementEngine{
		hosts:          hosts,
		dns:            dns,
		processManager: pm,
		catalog:        catalog,
		logger:         logger,
	}
}

// Update applies items when they differ from the applied set. A permission
// error is reported in the result, not as an error. Any failure leaves the
// applied set untouched so the next call retries.
func (e *EnforcementEngine) Update(ctx context.Context, items []string) (domain.HostsResult, error) {
	set := normalizeItems(items)

	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	e.setDesired(sortedKeys(set))
	return e.applyLocked(ctx, set, false)
}

// Clear removes the managed region regardless of the applied set.
func (e *EnforcementEngine) Clear(ctx context.Context) (domain.HostsResult, error) {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	e.setDesired(nil)
	return e.applyLocked(ctx, map[string]struct{}{}, true)
}

// setDesired must be called with hostsMu held.
func (e *EnforcementEngine) setDesired(items []string) {
	e.desiredMu.Lock()
	e.desired = items
	e.desiredMu.Unlock()
}

// Blocked returns the most recently requested item set.
func (e *EnforcementEngine) Blocked() []string {
	e.desiredMu.RLock()
	defer e.desiredMu.RUnlock()
	return append([]string(nil), e.desired...)
}

// ResolveDomains expands items to the sorted, de-duplicated, ASCII domain list.
func (e *EnforcementEngine) ResolveDomains(items []string) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, d := range e.catalog.Resolve(item) {
			ascii, err := idna.Lookup.ToASCII(d)
			if err != nil {
				e.logger.Warn("skipping invalid domain",
					zap.String("item", item),
					zap.String("domain", d),
					zap.Error(err))
				continue
			}
			seen[ascii] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (e *EnforcementEngine) applyLocked(ctx context.Context, set map[string]struct{}, force bool) (domain.HostsResult, error) {
	domains := e.ResolveDomains(sortedKeys(set))
	result := domain.HostsResult{Domains: domains}

	if !force && e.applied != nil && sameSet(e.applied, set) {
		return result, nil
	}

	current, err := e.hosts.Read()
	if err != nil {
		if isPermission(err) {
			e.logger.Warn("cannot read hosts file (permission denied, run as root)",
				zap.String("path", e.hosts.Path()))
			result.PermissionDenied = true
			return result, nil
		}
		return result, err
	}

	next := RenderHosts(current, domains)
	if next != current {
		if err := e.hosts.Write(next); err != nil {
			if isPermission(err) {
				e.logger.Warn("cannot write hosts file (permission denied, run as root)",
					zap.String("path", e.hosts.Path()))
				result.PermissionDenied = true
				return result, nil
			}
			return result, err
		}
		result.Changed = true
		e.logger.Info("hosts file updated",
			zap.Int("items", len(set)),
			zap.Int("domains", len(domains)))
		e.flushDNS(ctx)
	}

	e.applied = set
	return result, nil
}

func (e *EnforcementEngine) flushDNS(ctx context.Context) {
	if e.dns == nil {
		return
	}
	if err := e.dns.Flush(ctx); err != nil {
		e.logger.Debug("dns flush failed", zap.Error(err))
	}
}

// Sweep kills every running process matching a blocked item.
func (e *EnforcementEngine) Sweep(ctx context.Context) domain.SweepResult {
	start := time.Now()
	result := domain.SweepResult{
		KilledPIDs: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	self := os.Getpid()
	seen := make(map[int]bool)

	for _, item := range e.Blocked() {
		for _, pattern := range e.catalog.ProcessPatterns(item) {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, ctx.Err())
				result.DurationMs = time.Since(start).Milliseconds()
				return result
			}

			pids, err := e.processManager.FindByName(pattern)
			if err != nil {
				e.logger.Warn("failed to find processes",
					zap.String("pattern", pattern),
					zap.Error(err))
				result.Errors = append(result.Errors, err)
				continue
			}

			for _, pid := range pids {
				if pid == self || seen[pid] {
					continue
				}
				seen[pid] = true

				if err := e.processManager.Kill(pid); err != nil {
					e.logger.Warn("failed to kill process",
						zap.Int("pid", pid),
						zap.Error(err))
					result.Errors = append(result.Errors, err)
				} else {
					e.logger.Info("killed process",
						zap.String("item", item),
						zap.Int("pid", pid),
						zap.String("pattern", pattern))
					result.KilledPIDs = append(result.KilledPIDs, pid)
				}
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// RenderHosts replaces the managed region of content with one for domains.
// Text outside the markers is kept; an empty domain list removes the region.
func RenderHosts(content string, domains []string) string {
	base := managedRegion.ReplaceAllString(content, "")
	if len(domains) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	if base != "" {
		if !strings.HasSuffix(base, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(MarkerStart + "\n")
	for _, d := range domains {
		b.WriteString(LoopbackAddress + " " + d + "\n")
		b.WriteString(LoopbackAddress + " www." + d + "\n")
	}
	b.WriteString(MarkerEnd + "\n")
	return b.String()
}

func normalizeItems(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isPermission(err error) bool {
	return os.IsPermission(err) || errors.Is(err, fs.ErrPermission)
}
