package viewstate_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/trace"
	"github.com/san-kum/rayview/internal/viewstate"
)

var _ = Describe("Session lazy loading", func() {
	var (
		ctx     context.Context
		loader  *fakeLoader
		tr      *countingTransformer
		session *viewstate.Session
		logger  *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		loader = &fakeLoader{payload: fiveRays}
		tr = &countingTransformer{inner: rays.NewParticleTransformer(logger)}
	})

	JustBeforeEach(func() {
		session = viewstate.New(loader, tr, "../particles.json", viewstate.WithLogger(logger))
	})

	It("starts hidden with nothing loaded", func() {
		snap := session.Snapshot()
		Expect(snap.Status).To(Equal(viewstate.StatusNotLoaded))
		Expect(snap.View).To(Equal(viewstate.Initial()))
		Expect(snap.RayCount).To(BeZero())
		Expect(snap.Mode).To(Equal(viewstate.ModeHidden))
		Expect(snap.Controls.List()).To(BeEmpty())
		Expect(session.Dataset()).To(BeNil())
		Expect(session.ID()).NotTo(BeEmpty())
	})

	It("loads on the first toggle and shows the rays", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())

		Expect(loader.calls.Load()).To(BeEquivalentTo(1))
		Expect(tr.calls.Load()).To(BeEquivalentTo(1))
		Expect(session.Status()).To(Equal(viewstate.StatusLoaded))
		Expect(session.View().RaysVisible).To(BeTrue())
		Expect(session.Dataset().Len()).To(Equal(5))

		notices := session.Notices()
		Expect(notices).To(HaveLen(1))
		Expect(notices[0].Kind).To(Equal(viewstate.NoticeLoaded))
	})

	It("fetches and transforms exactly once across many toggles", func() {
		for i := 0; i < 7; i++ {
			Expect(session.RequestToggleVisibility(ctx)).To(Succeed())
		}
		Expect(loader.calls.Load()).To(BeEquivalentTo(1))
		Expect(tr.calls.Load()).To(BeEquivalentTo(1))
		Expect(session.View().RaysVisible).To(BeTrue(), "seven toggles end visible")
	})

	It("toggles back to the original state after two toggles once loaded", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		before := session.View()
		Expect(before.RaysVisible).To(BeFalse())

		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.View()).To(Equal(before))
	})

	Context("when the loader returns no data", func() {
		BeforeEach(func() {
			loader.payload = ""
		})

		It("fails closed and records DataUnavailable", func() {
			err := session.ToggleRaysVisible(ctx)
			Expect(err).To(MatchError(viewstate.ErrDataUnavailable))

			Expect(session.View().RaysVisible).To(BeFalse())
			Expect(session.Dataset()).To(BeNil())
			Expect(session.Status()).To(Equal(viewstate.StatusFailed))

			snap := session.Snapshot()
			Expect(snap.LastNotice).NotTo(BeNil())
			Expect(snap.LastNotice.Kind).To(Equal(viewstate.NoticeDataUnavailable))
		})

		It("retries on the next toggle", func() {
			Expect(session.ToggleRaysVisible(ctx)).NotTo(Succeed())
			loader.payload = fiveRays

			Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
			Expect(loader.calls.Load()).To(BeEquivalentTo(2))
			Expect(session.View().RaysVisible).To(BeTrue())
		})
	})

	Context("when the loader returns a null payload", func() {
		BeforeEach(func() {
			loader.payload = "null"
		})

		It("reports DataUnavailable without calling the transformer", func() {
			Expect(session.ToggleRaysVisible(ctx)).To(MatchError(viewstate.ErrDataUnavailable))
			Expect(tr.calls.Load()).To(BeZero())
		})
	})

	Context("when the loader fails", func() {
		cause := errors.New("connection refused")

		BeforeEach(func() {
			loader.err = cause
		})

		It("wraps the cause as DataUnavailable", func() {
			err := session.ToggleRaysVisible(ctx)
			Expect(err).To(MatchError(viewstate.ErrDataUnavailable))
			Expect(errors.Is(err, cause)).To(BeTrue())

			var le *viewstate.LoadError
			Expect(errors.As(err, &le)).To(BeTrue())
			Expect(le.Stage).To(Equal(viewstate.StageFetch))
			Expect(le.Ref).To(Equal("../particles.json"))
		})
	})

	Context("when the loader panics", func() {
		BeforeEach(func() {
			loader.panics = true
		})

		It("reports the panic as a fetch failure", func() {
			Expect(session.ToggleRaysVisible(ctx)).To(MatchError(viewstate.ErrDataUnavailable))
			Expect(session.Status()).To(Equal(viewstate.StatusFailed))
		})
	})

	Context("when the payload is not a particle bundle", func() {
		BeforeEach(func() {
			loader.payload = `{"rays":[{"events":[{"position":[1]}]}]}`
		})

		It("fails closed with TransformFailed", func() {
			err := session.ToggleRaysVisible(ctx)
			Expect(err).To(MatchError(viewstate.ErrTransformFailed))
			Expect(errors.Is(err, rays.ErrMalformed)).To(BeTrue())
			Expect(session.View().RaysVisible).To(BeFalse())
			Expect(session.Dataset()).To(BeNil())
			Expect(session.Snapshot().LastNotice.Kind).To(Equal(viewstate.NoticeTransformFailed))
		})
	})

	Context("when the transformer yields an empty dataset", func() {
		BeforeEach(func() {
			tr.inner = rays.TransformerFunc(func(*trace.Raw) (*rays.Dataset, error) {
				return rays.NewDataset(nil), nil
			})
		})

		It("does not install it", func() {
			err := session.ToggleRaysVisible(ctx)
			Expect(err).To(MatchError(viewstate.ErrTransformFailed))
			Expect(errors.Is(err, rays.ErrEmptyBundle)).To(BeTrue())
			Expect(session.Dataset()).To(BeNil())
		})
	})

	Context("with concurrent toggles during a load", func() {
		BeforeEach(func() {
			loader.hold()
		})

		It("coalesces them into one fetch and one visibility change", func() {
			const callers = 8
			errs := make(chan error, callers)
			var wg, ready sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				ready.Add(1)
				go func() {
					defer wg.Done()
					ready.Done()
					errs <- session.ToggleRaysVisible(ctx)
				}()
			}
			ready.Wait()

			Eventually(session.Status).Should(Equal(viewstate.StatusLoading))
			Eventually(loader.calls.Load).Should(BeEquivalentTo(1))
			Consistently(loader.calls.Load, 50*time.Millisecond).Should(BeEquivalentTo(1))
			Expect(session.View().RaysVisible).To(BeFalse(), "visibility waits for the dataset")

			loader.release()
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(loader.calls.Load()).To(BeEquivalentTo(1))
			Expect(tr.calls.Load()).To(BeEquivalentTo(1))
			Expect(session.View().RaysVisible).To(BeTrue())
		})

		It("keeps loading after a waiting caller gives up", func() {
			waitCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- session.ToggleRaysVisible(waitCtx) }()

			Eventually(loader.calls.Load).Should(BeEquivalentTo(1))
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
			Expect(session.Status()).To(Equal(viewstate.StatusLoading))

			loader.release()
			Eventually(session.Status).Should(Equal(viewstate.StatusLoaded))
			Expect(session.View().RaysVisible).To(BeTrue())
		})
	})

	Describe("change notifications", func() {
		It("pings subscribers after a state change", func() {
			ch := session.Subscribe()
			defer session.Unsubscribe(ch)

			Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
			Eventually(ch).Should(Receive())
		})

		It("closes subscribers when the session ends", func() {
			ch := session.Subscribe()
			session.Close()
			Eventually(ch).Should(BeClosed())

			Expect(session.ToggleRaysVisible(ctx)).To(MatchError(viewstate.ErrClosed))
			Expect(session.ToggleShowAllRays()).To(MatchError(viewstate.ErrClosed))
		})

		It("hands out closed channels after the session ends", func() {
			session.Close()
			ch := session.Subscribe()
			Expect(ch).To(BeClosed())
			session.Unsubscribe(ch)
		})
	})

	It("bounds the notice log", func() {
		s := viewstate.New(loader, tr, "ref", viewstate.WithLogger(logger), viewstate.WithNoticeLimit(3))
		for i := 0; i < 10; i++ {
			Expect(s.ToggleShowAllRays()).To(MatchError(viewstate.ErrInvalidModeTransition))
		}
		Expect(s.Notices()).To(HaveLen(3))
	})
})
