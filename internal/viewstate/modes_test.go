package viewstate_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rayview/internal/viewstate"
)

var _ = Describe("Select", func() {
	DescribeTable("exposed controls",
		func(v viewstate.ViewState, mode viewstate.Mode, want []viewstate.Control) {
			Expect(viewstate.ActiveMode(v)).To(Equal(mode))
			Expect(viewstate.Select(v).List()).To(Equal(want))
		},
		Entry("hidden", viewstate.Initial(), viewstate.ModeHidden, []viewstate.Control{}),
		Entry("hidden keeps nothing even in show-all",
			viewstate.ViewState{ShowAllRays: true, ScatterPoints: true}, viewstate.ModeHidden, []viewstate.Control{}),
		Entry("show-all",
			viewstate.ViewState{RaysVisible: true, ShowAllRays: true},
			viewstate.ModeShowAll,
			[]viewstate.Control{viewstate.ControlScatterPoints, viewstate.ControlSwitchToPlayback}),
		Entry("playback",
			viewstate.ViewState{RaysVisible: true, PlaybackIndex: 3},
			viewstate.ModePlayback,
			[]viewstate.Control{viewstate.ControlScatterPoints, viewstate.ControlSwitchToShowAll, viewstate.ControlPlayback}),
	)

	It("keeps show-all and playback exclusive for every flag combination", func() {
		for _, visible := range []bool{false, true} {
			for _, showAll := range []bool{false, true} {
				for _, scatter := range []bool{false, true} {
					for _, idx := range []int{viewstate.NoPlayback, 0, 4} {
						v := viewstate.ViewState{RaysVisible: visible, ShowAllRays: showAll, ScatterPoints: scatter, PlaybackIndex: idx}
						Expect(viewstate.CheckExclusive(v)).To(Succeed(), "%+v", v)

						cs := viewstate.Select(v)
						Expect(cs.Has(viewstate.ControlSwitchToPlayback) && cs.Has(viewstate.ControlPlayback)).To(BeFalse())
						Expect(v.ShowAllRays && v.PlaybackActive()).To(BeFalse())
						if !visible {
							Expect(v.PlaybackActive()).To(BeFalse())
						}
					}
				}
			}
		}
	})

	It("encodes controls and modes by name", func() {
		snap := struct {
			Mode     viewstate.Mode     `json:"mode"`
			Controls viewstate.Controls `json:"controls"`
		}{viewstate.ModeShowAll, viewstate.Select(viewstate.ViewState{RaysVisible: true, ShowAllRays: true})}

		data, err := json.Marshal(snap)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"mode":"show_all","controls":["scatter_points","switch_to_playback"]}`))
	})

	It("decodes what it encodes", func() {
		var snap viewstate.Snapshot
		data := `{"status":"loaded","mode":"playback","controls":["scatter_points","playback"],"last_notice":{"kind":"index_out_of_range"}}`
		Expect(json.Unmarshal([]byte(data), &snap)).To(Succeed())
		Expect(snap.Status).To(Equal(viewstate.StatusLoaded))
		Expect(snap.Mode).To(Equal(viewstate.ModePlayback))
		Expect(snap.Controls.List()).To(Equal([]viewstate.Control{viewstate.ControlScatterPoints, viewstate.ControlPlayback}))
		Expect(snap.LastNotice.Kind).To(Equal(viewstate.NoticeIndexOutOfRange))

		Expect(json.Unmarshal([]byte(`{"mode":"sideways"}`), &snap)).NotTo(Succeed())
	})
})
