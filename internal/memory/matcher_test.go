package memory_test

import (
	"testing"

	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/memory"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSignature(t *testing.T) {
	Convey("Given a page-1 contact block", t, func() {
		tbl := model.Table{
			PageNumber: model.IntPtr(1),
			Type:       model.FrontPage,
			Headers:    []string{"Contact Block"},
			Data:       [][]string{{"Email: ir@abc.com Website: www.abc.com Tel: +91 22 4000 5000"}},
		}
		sig := memory.ComputeSignature(tbl)

		Convey("Then the anchors and shape are captured", func() {
			So(sig.AnchorCount, ShouldEqual, 3)
			So(sig.PageBand, ShouldEqual, "front")
			So(sig.ColCount, ShouldEqual, 1)
			So(sig.RowCount, ShouldEqual, 1)
			So(sig.TabularityProxy, ShouldEqual, 0)
			So(sig.ContactCues, ShouldEqual, 1)
			So(sig.KVLabelCount, ShouldBeGreaterThanOrEqualTo, 3)
			So(len(sig.MinHash), ShouldBeBetweenOrEqual, 1, 32)
		})

		Convey("Then the id is stable and page sensitive", func() {
			So(memory.ComputeSignature(tbl).ID(), ShouldEqual, sig.ID())
			So(sig.ID(), ShouldHaveLength, 32)

			moved := tbl.Clone()
			moved.PageNumber = model.IntPtr(9)
			So(memory.ComputeSignature(moved).ID(), ShouldNotEqual, sig.ID())
		})
	})

	Convey("Given a table without data", t, func() {
		sig := memory.ComputeSignature(model.Table{Headers: []string{"A", "B"}})
		So(sig.ColCount, ShouldEqual, 2)
		So(sig.RowCount, ShouldEqual, 0)
		So(sig.PageBand, ShouldEqual, "back")
	})
}

func TestFamilyHints(t *testing.T) {
	Convey("Given structural sketches", t, func() {
		So(memory.FamilyHints(memory.Signature{RowCount: 10, ColCount: 5}), ShouldResemble, []string{memory.FamilyGeneric})
		So(memory.FamilyHints(memory.Signature{RowCount: 10, ColCount: 3, PeriodCues: 2}), ShouldResemble, []string{memory.FamilyPeriodGrid})
		So(memory.FamilyHints(memory.Signature{RowCount: 2, ColCount: 2}), ShouldResemble, []string{memory.FamilyMicroTables})
		So(memory.FamilyHints(memory.Signature{RowCount: 10, ColCount: 5, ContactCues: 2, ProtoGrid: 0.2}),
			ShouldResemble, []string{memory.FamilyContactSlab})
		So(memory.FamilyHints(memory.Signature{RowCount: 10, ColCount: 5, RowLabelDensity: 0.9, NumFrac: []float64{0}}),
			ShouldResemble, []string{memory.FamilyLedgerStub})
	})
}

func TestMatchPatterns(t *testing.T) {
	Convey("Given a minhash overlap", t, func() {
		So(memory.Jaccard([]uint32{1, 2, 3}, []uint32{2, 3, 4}), ShouldAlmostEqual, 0.5)
		So(memory.Jaccard(nil, []uint32{1}), ShouldEqual, 0)
	})

	Convey("Given two stored patterns", t, func() {
		sig := memory.Signature{ColCount: 3, RowCount: 10, PeriodCues: 2, MinHash: []uint32{1, 2, 3}}
		patterns := []memory.Pattern{
			{Family: "generic", Sketch: memory.Sketch{ColCount: 6, MinHash: []uint32{9}}},
			{Family: "PERIOD_GRID", Sketch: memory.Sketch{ColCount: 3, MinHash: []uint32{1, 2, 3}}},
		}

		Convey("When ranking all of them", func() {
			got := memory.MatchPatterns(sig, patterns, 0)

			Convey("Then overlap, proximity and hint agreement add up", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].Pattern.Family, ShouldEqual, "PERIOD_GRID")
				So(got[0].Score, ShouldAlmostEqual, 1.0)
				So(got[1].Score, ShouldAlmostEqual, 0.0)
			})
		})

		Convey("When asking for the best one", func() {
			So(memory.MatchPatterns(sig, patterns, 1), ShouldHaveLength, 1)
		})

		Convey("When a sketch has no column count", func() {
			got := memory.MatchPatterns(sig, []memory.Pattern{{Family: "x", Sketch: memory.Sketch{MinHash: []uint32{7}}}}, 1)
			So(got[0].Score, ShouldAlmostEqual, 0.25)
		})
	})
}

func TestFrontContactCandidates(t *testing.T) {
	Convey("Given role lexicon hits", t, func() {
		sig := memory.Signature{AnchorCount: 2, LexHits: 1, PageBand: "front", KVLabelCount: 3, TabularityProxy: 0.1}
		got := memory.FrontContactCandidates(sig)
		So(got[0].Family, ShouldEqual, memory.FamilyFrontContactSlim)
		So(got[0].Score, ShouldAlmostEqual, 1.25)
		So(got[1].Score, ShouldAlmostEqual, 1.2)
	})

	Convey("Given key:value labels without role hits", t, func() {
		sig := memory.Signature{AnchorCount: 2, PageBand: "front", KVLabelCount: 3, TabularityProxy: 0.1}
		got := memory.FrontContactCandidates(sig)
		So(got[0].Family, ShouldEqual, memory.FamilyFrontContactKV)
	})
}
