//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/profile"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/thermal_mon/test/fixtures"
)

const (
	gameApp     = "com.example.game"
	cameraApp   = "com.example.camera"
	launcherApp = "com.android.launcher"
)

var _ = Describe("Thermal daemon", func() {
	for _, backend := range infra.StoreBackends() {
		Context("with the "+backend+" store", func() {
			var (
				tmpDir   string
				node     *fixtures.FakeThermalNode
				device   *fixtures.FakeDevice
				store    domain.ProfileStore
				registry *infra.FileStatusRegistry
				cancel   context.CancelFunc
				done     chan error
			)

			send := func(ev domain.ScreenEvent) {
				ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
				defer stop()
				Expect(device.Send(ctx, ev)).To(Succeed())
			}

			status := func() *domain.StatusEntry {
				entry, err := registry.Read()
				Expect(err).NotTo(HaveOccurred())
				return entry
			}

			BeforeEach(func() {
				var err error
				tmpDir, err = os.MkdirTemp("", "thermalmon-integration-*")
				Expect(err).NotTo(HaveOccurred())

				logger := zap.NewNop()
				paths := infra.PathsFor(tmpDir)

				node = fixtures.NewFakeThermalNode(tmpDir)
				Expect(node.Create("0")).To(Succeed())
				device = fixtures.NewFakeDevice()

				cfg := daemon.DefaultConfig(paths)
				cfg.Store.Backend = backend
				cfg.Tracker.PollInterval = 10 * time.Millisecond
				cfg.Status.HeartbeatInterval = 50 * time.Millisecond
				cfg.Hardware.ControlPoints = []daemon.ControlPointConfig{{Path: node.Path}}
				Expect(cfg.Validate()).To(Succeed())

				store, err = infra.OpenProfileStore(cfg.Store.Backend, cfg.Store.Dir, logger)
				Expect(err).NotTo(HaveOccurred())
				Expect(store.Set(gameApp, domain.ProfileGaming)).To(Succeed())
				Expect(store.Set(cameraApp, domain.ProfileStreaming)).To(Succeed())

				points, err := cfg.ControlPoints(profile.NewRegistry())
				Expect(err).NotTo(HaveOccurred())

				reg := prometheus.NewRegistry()
				m := metrics.New(reg)
				writer := infra.NewSysfsWriter(points, logger)
				tracker := usecase.NewForegroundTracker(device, cfg.TrackerSettings(), m, logger)
				controller := usecase.NewThermalController(cfg.ControllerSettings(), store, writer, tracker, m, logger)
				registry = infra.NewFileStatusRegistry(paths.StatusPath(), infra.NewProcessManager())

				d := domain.Daemon{PID: os.Getpid(), StartedAt: time.Now(), AppVersion: "integration", StoreBackend: backend}
				svc := daemon.NewService(cfg, controller, device, registry, reg, d, logger)

				var ctx context.Context
				ctx, cancel = context.WithCancel(context.Background())
				done = make(chan error, 1)
				go func() { done <- svc.Run(ctx) }()

				Eventually(status).ShouldNot(BeNil())
			})

			AfterEach(func() {
				if cancel != nil {
					cancel()
					Eventually(done, 5*time.Second).Should(Receive())
				}
				if store != nil {
					store.Close()
				}
				os.RemoveAll(tmpDir)
			})

			It("applies the selected profile while an application is in front", func() {
				device.SetForeground(launcherApp)
				send(domain.ScreenOn)
				Eventually(func() string { return status().CurrentAppID }).Should(Equal(launcherApp))
				Expect(node.Value()).To(Equal("0"))

				device.SetForeground(gameApp)
				Eventually(node.Value).Should(Equal("9"))

				device.SetForeground(cameraApp)
				Eventually(node.Value).Should(Equal("14"))

				device.SetForeground(launcherApp)
				Eventually(node.Value).Should(Equal("0"))
			})

			It("returns to default when the screen turns off", func() {
				device.SetForeground(gameApp)
				send(domain.ScreenOn)
				Eventually(node.Value).Should(Equal("9"))

				send(domain.ScreenOff)
				Eventually(node.Value).Should(Equal("0"))
				Eventually(func() string { return status().State }).Should(Equal(string(domain.StateSuspended)))
				Expect(status().CurrentAppID).To(BeEmpty())
			})

			It("suspends tracking when the user unlocks", func() {
				device.SetForeground(gameApp)
				send(domain.ScreenOn)
				Eventually(node.Value).Should(Equal("9"))

				send(domain.UserPresent)
				Eventually(node.Value).Should(Equal("0"))

				// No tracking means foreground changes are not observed.
				device.SetForeground(cameraApp)
				Consistently(node.Value, 200*time.Millisecond).Should(Equal("0"))
			})

			It("picks up a selection changed while the daemon runs", func() {
				device.SetForeground(launcherApp)
				send(domain.ScreenOn)
				Eventually(func() string { return status().CurrentAppID }).Should(Equal(launcherApp))

				Expect(store.Set(launcherApp, domain.ProfileBattery)).To(Succeed())
				device.SetForeground(gameApp)
				Eventually(node.Value).Should(Equal("9"))
				device.SetForeground(launcherApp)
				Eventually(node.Value).Should(Equal("1"))
			})

			It("restores default on shutdown", func() {
				device.SetForeground(gameApp)
				send(domain.ScreenOn)
				Eventually(node.Value).Should(Equal("9"))

				cancel()
				Eventually(done, 5*time.Second).Should(Receive(BeNil()))
				cancel = nil

				Expect(node.Value()).To(Equal("0"))
				Expect(status().State).To(Equal(string(domain.StateSuspended)))
			})

			It("keeps running when the control file disappears", func() {
				send(domain.ScreenOn)
				Expect(node.Remove()).To(Succeed())

				device.SetForeground(gameApp)
				Eventually(func() string { return status().CurrentAppID }).Should(Equal(gameApp))
				Expect(status().LastAppliedProfile).To(Equal(string(domain.ProfileDefault)))

				send(domain.ScreenOff)
				Eventually(func() bool { return status().WritePending }).Should(BeTrue())

				Expect(node.Create("5")).To(Succeed())
				send(domain.ScreenOff)
				Eventually(node.Value).Should(Equal("0"))
				Eventually(func() bool { return status().WritePending }).Should(BeFalse())
			})
		})
	}
})
