// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/holomush/izou/internal/config"
	"github.com/holomush/izou/internal/core"
	"github.com/holomush/izou/internal/distributor"
	"github.com/holomush/izou/internal/host"
	"github.com/holomush/izou/internal/local"
	"github.com/holomush/izou/internal/observability"
	"github.com/holomush/izou/internal/permission"
	"github.com/holomush/izou/pkg/errutil"
)

type testAddOn struct {
	id      string
	init    func(ctx context.Context, rt *host.Runtime) error
	started atomic.Int32
	stopped atomic.Int32
}

func (a *testAddOn) ID() string { return a.id }

func (a *testAddOn) Init(ctx context.Context, rt *host.Runtime) error {
	if a.init == nil {
		return nil
	}
	return a.init(ctx, rt)
}

func (a *testAddOn) Start(context.Context) error {
	a.started.Add(1)
	return nil
}

func (a *testAddOn) Stop(context.Context) error {
	a.stopped.Add(1)
	return nil
}

type greetingBuilder struct{}

func (greetingBuilder) ID() string { return "greeter" }

func (greetingBuilder) AnnounceResources() []core.Resource {
	return []core.Resource{core.NewRequest("greeting.text")}
}

func (greetingBuilder) AnnounceEvents() []string { return []string{"greet"} }

func (greetingBuilder) ProvideResources(_ context.Context, _ []core.Resource, _ *core.Event) ([]core.Resource, error) {
	return []core.Resource{core.NewRequest("greeting.text").Fulfill("hello")}, nil
}

type channelPlugin struct {
	id     string
	events chan *core.Event
}

func (p *channelPlugin) ID() string { return p.id }

func (p *channelPlugin) RenderOutput(_ context.Context, event *core.Event) error {
	p.events <- event
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pools.System = 2
	cfg.Pools.AddOn = 4
	cfg.Timeouts.Admission = 200 * time.Millisecond
	cfg.Timeouts.Listeners = 200 * time.Millisecond
	cfg.Timeouts.Resources = time.Second
	cfg.Timeouts.Output = time.Second
	return cfg
}

var _ = Describe("Runtime", func() {
	var (
		ctx     context.Context
		cfg     *config.Config
		rt      *host.Runtime
		reg     *prometheus.Registry
		metrics *observability.Metrics
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = testConfig()
		reg = prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
	})

	JustBeforeEach(func() {
		var err error
		rt, err = host.New(cfg, host.WithLogger(quietLogger()), host.WithMetrics(metrics))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(rt.Stop(stopCtx)).To(Succeed())
		})
	})

	Describe("construction", func() {
		It("wires every component", func() {
			Expect(rt.Registry()).NotTo(BeNil())
			Expect(rt.Resources()).NotTo(BeNil())
			Expect(rt.Output()).NotTo(BeNil())
			Expect(rt.Distributor()).NotTo(BeNil())
			Expect(rt.Local()).NotTo(BeNil())
			Expect(rt.Permissions()).NotTo(BeNil())
			Expect(rt.Admission()).To(BeNil())
			Expect(rt.Config()).To(Equal(cfg))
		})

		It("registers the local event manager identity", func() {
			id, ok := rt.Registry().Lookup(local.ManagerID)
			Expect(ok).To(BeTrue())
			Expect(id.IsSelfMinted()).To(BeFalse())
		})

		It("rejects invalid configuration", func() {
			bad := testConfig()
			bad.Pools.AddOn = 0
			_, err := host.New(bad)
			Expect(errutil.HasCode(err, config.CodeInvalidConfig)).To(BeTrue())
		})

		It("rejects malformed admission policies", func() {
			bad := testConfig()
			bad.Admission.Policies = []string{"permit when"}
			_, err := host.New(bad)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("lifecycle", func() {
		It("is ready only while started", func() {
			Expect(rt.Ready()).To(BeFalse())
			Expect(rt.Start(ctx)).To(Succeed())
			Expect(rt.Ready()).To(BeTrue())

			err := rt.Start(ctx)
			Expect(errutil.HasCode(err, host.CodeAlreadyStarted)).To(BeTrue())

			Expect(rt.Stop(ctx)).To(Succeed())
			Expect(rt.Ready()).To(BeFalse())
		})

		It("starts and stops add-ons with the runtime", func() {
			early := &testAddOn{id: "early"}
			Expect(rt.Install(ctx, early)).To(Succeed())
			Expect(early.started.Load()).To(BeZero())

			Expect(rt.Start(ctx)).To(Succeed())
			Expect(early.started.Load()).To(Equal(int32(1)))

			late := &testAddOn{id: "late"}
			Expect(rt.Install(ctx, late)).To(Succeed())
			Expect(late.started.Load()).To(Equal(int32(1)))

			Expect(rt.Stop(ctx)).To(Succeed())
			Expect(early.stopped.Load()).To(Equal(int32(1)))
			Expect(late.stopped.Load()).To(Equal(int32(1)))
		})
	})

	Describe("installing add-ons", func() {
		It("registers a self-minted identity before Init", func() {
			addon := &testAddOn{id: "speaker"}
			addon.init = func(_ context.Context, rt *host.Runtime) error {
				id, ok := rt.Registry().Identify(addon)
				Expect(ok).To(BeTrue())
				Expect(id.IsSelfMinted()).To(BeTrue())
				return nil
			}

			Expect(rt.Install(ctx, addon)).To(Succeed())
			Expect(rt.AddOns()).To(Equal([]string{"speaker"}))
			Expect(testutil.ToFloat64(metrics.AddOnsInstalled)).To(Equal(float64(1)))
		})

		It("rejects add-ons without an ID", func() {
			err := rt.Install(ctx, &testAddOn{})
			Expect(errutil.HasCode(err, host.CodeInvalidAddOn)).To(BeTrue())
			Expect(testutil.ToFloat64(metrics.AddOnFailures.WithLabelValues("install"))).To(Equal(float64(1)))
		})

		It("rejects a second install of the same ID", func() {
			Expect(rt.Install(ctx, &testAddOn{id: "dup"})).To(Succeed())
			err := rt.Install(ctx, &testAddOn{id: "dup"})
			Expect(errutil.HasCode(err, host.CodeDuplicateAddOn)).To(BeTrue())
		})

		It("unregisters the identity when Init fails", func() {
			addon := &testAddOn{id: "broken", init: func(context.Context, *host.Runtime) error {
				return errors.New("no audio device")
			}}

			err := rt.Install(ctx, addon)
			Expect(errutil.HasCode(err, host.CodeAddOnInit)).To(BeTrue())
			_, ok := rt.Identify(addon)
			Expect(ok).To(BeFalse())
			Expect(rt.AddOns()).To(BeEmpty())
			Expect(testutil.ToFloat64(metrics.AddOnFailures.WithLabelValues("init"))).To(Equal(float64(1)))
		})

		It("isolates panics in Init", func() {
			addon := &testAddOn{id: "panicky", init: func(context.Context, *host.Runtime) error {
				panic("boom")
			}}

			err := rt.Install(ctx, addon)
			Expect(errutil.HasCode(err, errutil.CodePanic)).To(BeTrue())
			Expect(rt.AddOns()).To(BeEmpty())
		})
	})

	Describe("permissions", func() {
		BeforeEach(func() {
			cfg.Permissions.Grants = map[string][]string{
				"speaker": {"claim.audio.*"},
			}
		})

		It("loads grants from configuration", func() {
			addon := &testAddOn{id: "speaker"}
			Expect(rt.Install(ctx, addon)).To(Succeed())
			self, ok := rt.Identify(addon)
			Expect(ok).To(BeTrue())

			Expect(rt.Permissions().Claim(ctx, "audio.out", self)).To(Succeed())
			holder, held := rt.Permissions().Holder("audio.out")
			Expect(held).To(BeTrue())
			Expect(holder).To(Equal("speaker"))

			err := rt.Permissions().Claim(ctx, "socket.http", self)
			Expect(errutil.HasCode(err, permission.CodePermissionDenied)).To(BeTrue())
		})
	})

	Describe("event pipeline", func() {
		var (
			plugin   *channelPlugin
			caller   *local.Caller
			finished chan *core.Event
		)

		BeforeEach(func() {
			cfg.Admission.Policies = []string{`forbid when descriptor == "blocked";`}
		})

		JustBeforeEach(func() {
			plugin = &channelPlugin{id: "sink", events: make(chan *core.Event, 4)}
			finished = make(chan *core.Event, 4)

			addon := &testAddOn{id: "greeter"}
			addon.init = func(_ context.Context, rt *host.Runtime) error {
				if err := rt.Resources().Register(greetingBuilder{}); err != nil {
					return err
				}
				rt.Output().AddPlugin(plugin)
				if err := rt.Distributor().RegisterFinishedListener([]string{"greet"}, distributor.ListenerFunc{
					Name: "finished",
					Fn: func(_ context.Context, event *core.Event) error {
						finished <- event
						return nil
					},
				}); err != nil {
					return err
				}
				self, _ := rt.Registry().Identify(addon)
				var ok bool
				caller, ok = rt.Local().RegisterCaller(self)
				if !ok {
					return errors.New("caller taken")
				}
				return nil
			}

			Expect(rt.Install(ctx, addon)).To(Succeed())
			Expect(rt.Start(ctx)).To(Succeed())
		})

		It("compiles the configured admission policies", func() {
			Expect(rt.Admission()).NotTo(BeNil())
			Expect(rt.Admission().Rules()).To(Equal(1))
		})

		It("delivers enriched events to output and finished listeners", func() {
			event, err := core.NewEvent("greet", caller.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(caller.Fire(event)).To(Succeed())

			var delivered *core.Event
			Eventually(plugin.events).WithTimeout(2 * time.Second).Should(Receive(&delivered))
			Expect(delivered.ID()).To(Equal(event.ID()))
			texts := delivered.ResourcesByID("greeting.text")
			Expect(texts).To(HaveLen(1))
			Expect(texts[0].Payload).To(Equal("hello"))
			Expect(texts[0].Provider.ID()).To(Equal("greeter"))

			Eventually(finished).WithTimeout(2 * time.Second).Should(Receive())
		})

		It("drops events vetoed by policy", func() {
			event, err := core.NewEvent("greet", caller.ID(), "blocked")
			Expect(err).NotTo(HaveOccurred())
			Expect(caller.Fire(event)).To(Succeed())

			Consistently(plugin.events, 300*time.Millisecond).ShouldNot(Receive())
			Expect(finished).NotTo(Receive())
		})
	})
})
