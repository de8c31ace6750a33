package normalize_test

import (
	"strings"
	"testing"

	"github.com/okian/tabletriage/internal/domain/model"
	"github.com/okian/tabletriage/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSalvage(t *testing.T) {
	n := normalize.New()

	Convey("Given a free-form contact row on page 1", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(1),
			Rows: []model.RawRow{
				model.NewFreeFormRow("text", "Registrar to the Issue: XYZ RTA Email: x@y.com Website: www.xyz.com"),
			},
		}
		out := n.Normalize(raw, model.FrontPage)

		Convey("Then it collapses into a contact block", func() {
			So(out.Salvaged, ShouldBeTrue)
			So(out.Type, ShouldEqual, model.FrontPage)
			So(out.Headers, ShouldResemble, []string{"Contact Block"})
			So(out.Data, ShouldHaveLength, 1)
			So(out.Data[0][0], ShouldContainSubstring, "x@y.com")
		})
	})

	Convey("Given contact text classified generic on page 2", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(2),
			Rows:       []model.RawRow{model.NewFreeFormRow("note", "For any queries please write to the company secretary at the office")},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then salvage upgrades it to front page", func() {
			So(out.Type, ShouldEqual, model.FrontPage)
			So(out.Headers, ShouldResemble, []string{"Contact Block"})
		})
	})

	Convey("Given term and description fields with long prose", t, func() {
		desc := strings.Repeat("The aggregate of paid up share capital and all reserves. ", 3)
		raw := model.RawTable{
			PageNumber: model.IntPtr(20),
			Rows:       []model.RawRow{model.NewFreeFormRow("term", "Net Worth", "description", desc)},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then the rows become a definition column", func() {
			So(out.Headers, ShouldResemble, []string{"Definition"})
			So(out.Type, ShouldEqual, model.Generic)
		})
	})

	Convey("Given short free-form rows", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(20),
			Rows:       []model.RawRow{model.NewFreeFormRow("a", "short"), model.NewFreeFormRow("b", "tiny")},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then salvage yields nothing and a single placeholder column is used", func() {
			So(out.Salvaged, ShouldBeFalse)
			So(out.Headers, ShouldResemble, []string{"Column_0"})
			So(out.Data, ShouldResemble, [][]string{{"short"}, {"tiny"}})
		})
	})
}

func TestStructured(t *testing.T) {
	n := normalize.New()

	Convey("Given a Particulars | FY21 | FY22 grid on page 40", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(40),
			Rows: []model.RawRow{
				model.NewKeyedRow("Particulars", "FY21", "FY22"),
				model.NewKeyedRow("Revenue from operations", "1,234.5", "1,456.7"),
				model.NewKeyedRow("Other income", "12", "15"),
			},
		}
		out := n.Normalize(raw, model.FinancialStatement)

		Convey("Then the period band becomes the header", func() {
			So(out.Headers, ShouldResemble, []string{"Particulars", "FY21", "FY22"})
			So(out.Data, ShouldHaveLength, 2)
			So(out.Data[0], ShouldResemble, []string{"Revenue from operations", "1,234.5", "1,456.7"})
		})
	})

	Convey("Given a lexicon header row", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(30),
			Rows: []model.RawRow{
				model.NewKeyedRow("Particulars", "Amount", "Total"),
				model.NewKeyedRow("Cash", "10", "10"),
			},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then the row is consumed as headers", func() {
			So(out.Headers, ShouldResemble, []string{"Particulars", "Amount", "Total"})
			So(out.Data, ShouldResemble, [][]string{{"Cash", "10", "10"}})
			So(out.RawHeaderParts[1], ShouldResemble, []string{"Amount"})
		})
	})

	Convey("Given a sparse column on a generic table", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(30),
			Rows: []model.RawRow{
				model.NewKeyedRow("a", "", "1"),
				model.NewKeyedRow("b", "", "2"),
				model.NewKeyedRow("c", "-", "3"),
				model.NewKeyedRow("d", "x", "4"),
			},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then the column below the content threshold is dropped", func() {
			So(out.Cols, ShouldEqual, 2)
			So(out.Headers, ShouldResemble, []string{"Column_0", "Column_1"})
			So(out.Data[3], ShouldResemble, []string{"d", "4"})
		})
	})

	Convey("Given multi-line front page cells", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(1),
			Rows: []model.RawRow{
				model.NewKeyedRow("Alpha\nBeta", "1\n2"),
			},
		}
		out := n.Normalize(raw, model.FrontPage)

		Convey("Then the row unfolds by line", func() {
			So(out.Data, ShouldResemble, [][]string{{"Alpha", "1"}, {"Beta", "2"}})
		})
	})

	Convey("Given a front page row naming contact fields", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(1),
			Rows: []model.RawRow{
				model.NewKeyedRow("Registrar to the Issue", "Email", "Telephone"),
				model.NewKeyedRow("Link Intime", "ir@link.in", "022 4918 6000"),
			},
		}
		out := n.Normalize(raw, model.FrontPage)

		Convey("Then the labels are promoted to headers", func() {
			So(out.Headers, ShouldResemble, []string{"Registrar", "Email", "Telephone"})
			So(out.Data, ShouldResemble, [][]string{{"Link Intime", "ir@link.in", "022 4918 6000"}})
		})
	})

	Convey("Given a header longer than the configured maximum", t, func() {
		short := normalize.New(normalize.WithMaxHeaderLength(10))
		raw := model.RawTable{
			PageNumber: model.IntPtr(30),
			Rows: []model.RawRow{
				model.NewKeyedRow("Particulars of the revenue", "Amount"),
				model.NewKeyedRow("Cash", "10"),
			},
		}
		out := short.Normalize(raw, model.Generic)

		Convey("Then it is truncated with an ellipsis", func() {
			So(out.Headers[0], ShouldEqual, "Particu...")
			So(out.Headers[1], ShouldEqual, "Amount")
		})
	})

	Convey("Given multi-line front page cells and the split bounds", t, func() {
		row := func() model.RawRow { return model.NewKeyedRow("Alpha\nBeta", "Gamma\nDelta") }
		table := func(page, rows int) model.RawTable {
			raw := model.RawTable{PageNumber: model.IntPtr(page)}
			for i := 0; i < rows; i++ {
				raw.Rows = append(raw.Rows, row())
			}
			return raw
		}

		Convey("When page 1 carries ten rows", func() {
			out := n.Normalize(table(1, 10), model.FrontPage)

			Convey("Then no row is split", func() {
				So(out.Data, ShouldHaveLength, 10)
				So(out.Data[0], ShouldResemble, []string{"Alpha Beta", "Gamma Delta"})
			})
		})

		Convey("When the table sits on page 4", func() {
			out := n.Normalize(table(4, 1), model.FrontPage)

			Convey("Then no row is split", func() {
				So(out.Data, ShouldResemble, [][]string{{"Alpha Beta", "Gamma Delta"}})
			})
		})

		Convey("When page 3 carries two rows", func() {
			out := n.Normalize(table(3, 2), model.FrontPage)

			Convey("Then each row unfolds by line", func() {
				So(out.Data, ShouldHaveLength, 4)
				So(out.Data[1], ShouldResemble, []string{"Beta", "Delta"})
			})
		})
	})

	Convey("Given front page rows without column keys", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(1),
			Rows:       []model.RawRow{model.NewFreeFormRow("text", "Email\nWebsite")},
		}
		out := n.Normalize(raw, model.FrontPage)

		Convey("Then the single column still unfolds by line", func() {
			So(out.Salvaged, ShouldBeFalse)
			So(out.Headers, ShouldResemble, []string{"Column_0"})
			So(out.Data, ShouldResemble, [][]string{{"Email"}, {"Website"}})
		})
	})

	Convey("Given a leading row-label band", t, func() {
		raw := model.RawTable{
			PageNumber: model.IntPtr(30),
			Rows: []model.RawRow{
				model.NewKeyedRow("Total assets and liabilities of the group", "", ""),
				model.NewKeyedRow("Cash", "10", "9"),
				model.NewKeyedRow("Bank", "5", "4"),
			},
		}
		out := n.Normalize(raw, model.Generic)

		Convey("Then it stays in the data", func() {
			So(out.Headers, ShouldResemble, []string{"Column_0", "Column_1", "Column_2"})
			So(out.Data, ShouldHaveLength, 3)
			So(out.Data[0][0], ShouldEqual, "Total assets and liabilities of the group")
		})
	})
}

func TestComposePeriodHeaders(t *testing.T) {
	Convey("Given a band where two columns carry period markers", t, func() {
		grid := [][]string{{"Particulars note", "FY 2023", "FY 2022"}, {"Revenue", "100", "90"}}
		headers, parts, band, ok := normalize.ComposePeriodHeaders(grid, 1)

		Convey("Then unmarked columns fall back to placeholders", func() {
			So(ok, ShouldBeTrue)
			So(band, ShouldEqual, 1)
			So(headers, ShouldResemble, []string{"Column_0", "FY 2023", "FY 2022"})
			So(parts[0], ShouldResemble, []string{"Particulars note"})
		})
	})

	Convey("Given a band where only one column carries a period marker", t, func() {
		grid := [][]string{{"Particulars", "FY 2023", "Notes"}, {"Revenue", "100", "90"}}
		_, _, _, ok := normalize.ComposePeriodHeaders(grid, 1)

		Convey("Then composition is rejected", func() {
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a band that would leave too few data rows", t, func() {
		grid := [][]string{{"", "FY 2023", "FY 2022"}, {"Revenue", "100", "90"}}
		_, _, _, ok := normalize.ComposePeriodHeaders(grid, 2)
		So(ok, ShouldBeFalse)
	})
}

func TestPromoteFrontFields(t *testing.T) {
	headers := []string{"Column_0", "Column_1"}

	Convey("Given a first row naming a single contact field", t, func() {
		data := [][]string{{"Email", "ir@link.in"}, {"a", "b"}}
		gotHeaders, gotData := normalize.PromoteFrontFields(headers, data)

		Convey("Then nothing is promoted", func() {
			So(gotHeaders, ShouldResemble, headers)
			So(gotData, ShouldResemble, data)
		})
	})

	Convey("Given more labels than columns", t, func() {
		data := [][]string{{"Email Website", "Telephone"}}
		gotHeaders, gotData := normalize.PromoteFrontFields(headers, data)
		So(gotHeaders, ShouldResemble, headers)
		So(gotData, ShouldHaveLength, 1)
	})
}
