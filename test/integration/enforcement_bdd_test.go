//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
	"github.com/eliteGoblin/focusd/totalctl/internal/policy"
	"github.com/eliteGoblin/focusd/totalctl/internal/progress"
	"github.com/eliteGoblin/focusd/totalctl/internal/rules"
	"github.com/eliteGoblin/focusd/totalctl/internal/usecase"
)

const originalHosts = "127.0.0.1 localhost\n::1 localhost\n"

var _ = Describe("Rule enforcement through the hosts file", func() {
	var (
		tmpDir    string
		hostsPath string
		rulesPath string
		now       time.Time
		logger    *zap.Logger

		engine   *rules.Engine
		store    *progress.Store
		enforcer *usecase.EnforcementEngine
		ctx      context.Context
	)

	readHosts := func() string {
		data, err := os.ReadFile(hostsPath)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	reconcile := func() domain.HostsResult {
		result, err := enforcer.Update(ctx, engine.BlockedItems(store.Snapshot()))
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "totalctl-integration-*")
		Expect(err).NotTo(HaveOccurred())

		hostsPath = filepath.Join(tmpDir, "hosts")
		Expect(os.WriteFile(hostsPath, []byte(originalHosts), 0644)).To(Succeed())
		rulesPath = filepath.Join(tmpDir, infra.RulesFileName)

		now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)
		clock := func() time.Time { return now }
		logger = zap.NewNop()
		ctx = context.Background()

		engine = rules.NewEngineWithClock(infra.NewRuleFile(rulesPath, logger), nil, clock, logger)
		Expect(engine.Reload()).To(Succeed())

		cache := infra.NewProgressCacheFile(filepath.Join(tmpDir, infra.ProgressCacheFileName))
		store = progress.NewStoreWithClock(cache, clock, logger)

		enforcer = usecase.NewEnforcementEngine(
			infra.NewHostsFileWithPath(hostsPath),
			nil,
			infra.NewProcessManager(),
			policy.NewRegistry(),
			logger,
		)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("a steps rule", func() {
		BeforeEach(func() {
			_, err := engine.Add(domain.Rule{
				BlockedItems: []string{"youtube", "news.ycombinator.com"},
				Condition:    domain.Condition{Kind: domain.ConditionSteps, StepsTarget: 10000},
				Enabled:      true,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		Context("when the target is not reached", func() {
			It("should write the managed region after the existing entries", func() {
				result := reconcile()
				Expect(result.Changed).To(BeTrue())
				Expect(result.Domains).To(ContainElements("youtube.com", "news.ycombinator.com"))

				hosts := readHosts()
				Expect(hosts).To(HavePrefix(originalHosts))
				Expect(hosts).To(ContainSubstring(usecase.MarkerStart))
				Expect(hosts).To(ContainSubstring("127.0.0.1 youtube.com\n"))
				Expect(hosts).To(ContainSubstring("127.0.0.1 www.youtube.com\n"))
				Expect(hosts).To(ContainSubstring("127.0.0.1 news.ycombinator.com\n"))
				Expect(hosts).To(HaveSuffix(usecase.MarkerEnd + "\n"))
			})

			It("should not rewrite the file when nothing changed", func() {
				reconcile()
				info, err := os.Stat(hostsPath)
				Expect(err).NotTo(HaveOccurred())

				result := reconcile()
				Expect(result.Changed).To(BeFalse())

				after, err := os.Stat(hostsPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(after.ModTime()).To(Equal(info.ModTime()))
			})
		})

		Context("when the target is reached", func() {
			It("should remove the managed region and keep the rest of the file", func() {
				reconcile()
				Expect(store.AddSteps(10000)).To(Succeed())

				result := reconcile()
				Expect(result.Changed).To(BeTrue())
				Expect(readHosts()).To(Equal(originalHosts))
			})
		})

		Context("when the rule is disabled", func() {
			It("should unblock", func() {
				reconcile()
				id := engine.Rules()[0].ID
				Expect(engine.SetEnabled(id, false)).To(Succeed())

				reconcile()
				Expect(readHosts()).To(Equal(originalHosts))
			})
		})

		It("should persist the rule for a new engine", func() {
			reloaded := rules.NewEngine(infra.NewRuleFile(rulesPath, logger), nil, logger)
			Expect(reloaded.Reload()).To(Succeed())

			Expect(reloaded.Rules()).To(HaveLen(1))
			Expect(reloaded.Rules()[0].BlockedItems).To(Equal([]string{"youtube", "news.ycombinator.com"}))
		})
	})

	Describe("a tomorrow rule", func() {
		It("should block until the day rolls over", func() {
			_, err := engine.Add(domain.Rule{
				BlockedItems: []string{"reddit"},
				Condition:    domain.Condition{Kind: domain.ConditionTomorrow},
				Enabled:      true,
			})
			Expect(err).NotTo(HaveOccurred())

			reconcile()
			Expect(readHosts()).To(ContainSubstring("127.0.0.1 reddit.com\n"))

			now = now.Add(24 * time.Hour)
			n, err := engine.Rollover()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			reconcile()
			Expect(readHosts()).To(Equal(originalHosts))
		})
	})

	Describe("clearing", func() {
		It("should remove the region even when nothing is tracked as applied", func() {
			rendered := usecase.RenderHosts(originalHosts, []string{"example.com"})
			Expect(os.WriteFile(hostsPath, []byte(rendered), 0644)).To(Succeed())

			result, err := enforcer.Clear(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Changed).To(BeTrue())
			Expect(readHosts()).To(Equal(originalHosts))
		})
	})

	Describe("progress cache", func() {
		It("should hand manual progress to another store", func() {
			Expect(store.AddSteps(4200)).To(Succeed())
			store.SetLocation(&domain.Location{Name: "Gym", Latitude: 51.5, Longitude: -0.12})

			other := progress.NewStoreWithClock(
				infra.NewProgressCacheFile(filepath.Join(tmpDir, infra.ProgressCacheFileName)),
				func() time.Time { return now },
				logger,
			)
			Expect(other.Load()).To(Succeed())

			snap := other.Snapshot()
			Expect(snap.StepsToday).To(Equal(4200))
			Expect(snap.CurrentLocation).NotTo(BeNil())
			Expect(snap.CurrentLocation.Name).To(Equal("Gym"))
		})
	})
})
