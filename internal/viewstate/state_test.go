package viewstate_test

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/viewstate"
)

var _ = Describe("ViewState transitions", func() {
	visible := viewstate.ViewState{RaysVisible: true, PlaybackIndex: viewstate.NoPlayback}

	Describe("ToggleShowAll", func() {
		It("flips show-all while rays are visible", func() {
			next, err := visible.ToggleShowAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ShowAllRays).To(BeTrue())

			back, err := next.ToggleShowAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(visible))
		})

		It("is rejected while rays are hidden", func() {
			hidden := viewstate.Initial()
			next, err := hidden.ToggleShowAll()
			Expect(err).To(MatchError(viewstate.ErrInvalidModeTransition))
			Expect(next).To(Equal(hidden))
		})
	})

	Describe("ToggleScatterPoints", func() {
		It("needs visible rays", func() {
			_, err := viewstate.Initial().ToggleScatterPoints()
			Expect(err).To(MatchError(viewstate.ErrInvalidModeTransition))

			next, err := visible.ToggleScatterPoints()
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ScatterPoints).To(BeTrue())
		})
	})

	Describe("SetPlaybackIndex", func() {
		DescribeTable("range checks against a dataset of 5",
			func(i int, wantErr error) {
				next, err := visible.SetPlaybackIndex(i, 5)
				if wantErr == nil {
					Expect(err).NotTo(HaveOccurred())
					Expect(next.PlaybackIndex).To(Equal(i))
					return
				}
				Expect(err).To(MatchError(wantErr))
				Expect(next).To(Equal(visible))
			},
			Entry("first", 0, nil),
			Entry("last", 4, nil),
			Entry("one past the end", 5, viewstate.ErrIndexOutOfRange),
			Entry("negative", -1, viewstate.ErrIndexOutOfRange),
		)

		It("never changes the index in show-all mode", func() {
			showAll := visible
			showAll.ShowAllRays = true
			showAll.PlaybackIndex = 2

			next, err := showAll.SetPlaybackIndex(3, 5)
			Expect(err).To(MatchError(viewstate.ErrInvalidModeTransition))
			Expect(next.PlaybackIndex).To(Equal(2))
		})

		It("reports index and length", func() {
			_, err := visible.SetPlaybackIndex(7, 5)
			var ie *viewstate.IndexError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Index).To(Equal(7))
			Expect(ie.Len).To(Equal(5))
		})
	})

	Describe("StepPlayback", func() {
		DescribeTable("moves and wraps the cursor",
			func(from, delta, want int) {
				v := visible
				v.PlaybackIndex = from
				next, err := v.StepPlayback(delta, 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(next.PlaybackIndex).To(Equal(want))
			},
			Entry("forward from unplaced", viewstate.NoPlayback, 1, 0),
			Entry("backward from unplaced", viewstate.NoPlayback, -1, 4),
			Entry("forward", 1, 1, 2),
			Entry("wrap forward", 4, 1, 0),
			Entry("wrap backward", 0, -1, 4),
			Entry("large step", 2, 12, 4),
			Entry("no move", 3, 0, 3),
		)

		It("needs playback mode and a dataset", func() {
			_, err := viewstate.Initial().StepPlayback(1, 5)
			Expect(err).To(MatchError(viewstate.ErrInvalidModeTransition))

			_, err = visible.StepPlayback(1, 0)
			Expect(err).To(MatchError(viewstate.ErrIndexOutOfRange))
		})
	})
})

var _ = Describe("Session mutators", func() {
	var (
		ctx     context.Context
		session *viewstate.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		session = viewstate.New(&fakeLoader{payload: fiveRays}, rays.NewParticleTransformer(logger), "ref", viewstate.WithLogger(logger))
	})

	It("rejects show-all before the rays are visible", func() {
		Expect(session.ToggleShowAllRays()).To(MatchError(viewstate.ErrInvalidModeTransition))
		Expect(session.View()).To(Equal(viewstate.Initial()))
		Expect(session.Snapshot().LastNotice.Kind).To(Equal(viewstate.NoticeInvalidTransition))
	})

	It("hides the playback controls when switching to show-all (scenario 3)", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.SetPlaybackIndex(2)).To(Succeed())
		Expect(session.Snapshot().Controls.Has(viewstate.ControlPlayback)).To(BeTrue())

		Expect(session.ToggleShowAllRays()).To(Succeed())

		snap := session.Snapshot()
		Expect(snap.View.ShowAllRays).To(BeTrue())
		Expect(snap.Mode).To(Equal(viewstate.ModeShowAll))
		Expect(snap.Controls.Has(viewstate.ControlPlayback)).To(BeFalse())
		Expect(snap.Controls.Has(viewstate.ControlSwitchToPlayback)).To(BeTrue())
		Expect(snap.View.PlaybackIndex).To(Equal(2), "index is kept but inert")
	})

	It("keeps the index when it is out of range (scenario 4)", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.SetPlaybackIndex(4)).To(Succeed())

		Expect(session.SetPlaybackIndex(5)).To(MatchError(viewstate.ErrIndexOutOfRange))
		Expect(session.View().PlaybackIndex).To(Equal(4))
		Expect(session.Snapshot().LastNotice.Kind).To(Equal(viewstate.NoticeIndexOutOfRange))
	})

	It("steps playback through the loaded dataset", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.StepPlayback(1)).To(Succeed())
		Expect(session.View().PlaybackIndex).To(Equal(0))
		Expect(session.StepPlayback(-1)).To(Succeed())
		Expect(session.View().PlaybackIndex).To(Equal(4))
	})

	It("keeps mode flags while rays are hidden", func() {
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.ToggleShowAllRays()).To(Succeed())
		Expect(session.ToggleScatterPoints()).To(Succeed())
		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())

		snap := session.Snapshot()
		Expect(snap.Mode).To(Equal(viewstate.ModeHidden))
		Expect(snap.Controls.List()).To(BeEmpty())
		Expect(snap.View.ShowAllRays).To(BeTrue())

		Expect(session.ToggleRaysVisible(ctx)).To(Succeed())
		Expect(session.Snapshot().Mode).To(Equal(viewstate.ModeShowAll))
	})
})
