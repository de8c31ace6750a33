package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/tabletriage/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRawTableDecoding(t *testing.T) {
	Convey("Given a legacy table with keyed rows", t, func() {
		doc := []byte(`{"page_number": 4, "table_data": [
			{"col_2": "c", "col_0": "a", "col_1": 12.50},
			{"col_0": null, "note": "free text", "col_1": true}
		]}`)

		var tbl model.RawTable
		err := json.Unmarshal(doc, &tbl)

		Convey("Then rows keep document order and are tagged keyed", func() {
			So(err, ShouldBeNil)
			So(*tbl.PageNumber, ShouldEqual, 4)
			So(tbl.Rows, ShouldHaveLength, 2)
			So(tbl.Rows[0].Kind, ShouldEqual, model.RowKeyed)
			So(tbl.Rows[0].Fields[0].Name, ShouldEqual, "col_2")
			So(tbl.Rows[0].Cell(1), ShouldEqual, "12.50")
			So(tbl.Rows[1].Cell(0), ShouldEqual, "")
			So(tbl.Rows[1].Cell(1), ShouldEqual, "true")
			So(tbl.ColumnIndices(), ShouldResemble, []int{0, 1, 2})
			So(tbl.HasFreeFormFields(), ShouldBeTrue)
		})
	})

	Convey("Given a table whose rows are plain lists", t, func() {
		doc := []byte(`{"page_number": null, "table_data": [["Registrar: XYZ RTA", "Email: x@y.com"]]}`)

		var tbl model.RawTable
		err := json.Unmarshal(doc, &tbl)

		Convey("Then every element is a free-form cell", func() {
			So(err, ShouldBeNil)
			So(tbl.PageNumber, ShouldBeNil)
			So(tbl.Rows[0].Kind, ShouldEqual, model.RowFreeForm)
			So(tbl.Rows[0].Text(), ShouldEqual, "Registrar: XYZ RTA Email: x@y.com")
			So(tbl.ColumnIndices(), ShouldBeEmpty)
		})
	})

	Convey("Given a page number sent as a string", t, func() {
		var tbl model.RawTable
		err := json.Unmarshal([]byte(`{"page_number": "7", "table_data": []}`), &tbl)

		Convey("Then it is parsed as an integer", func() {
			So(err, ShouldBeNil)
			So(*tbl.PageNumber, ShouldEqual, 7)
			So(tbl.Rows, ShouldBeEmpty)
		})
	})

	Convey("Given copy markers in a free-form row", t, func() {
		row := model.NewFreeFormRow("IGNORE_WHEN_COPYING_START", "x", "term", "Alpha", "description", " beta ")

		Convey("Then Text skips them", func() {
			So(row.Text(), ShouldEqual, "Alpha beta")
			So(row.HasField("TERM"), ShouldBeTrue)
		})
	})
}

func TestParseDossiers(t *testing.T) {
	Convey("Given a legacy document with two dossiers", t, func() {
		doc := []byte(`{
			"doc-b": {"filename": "b.pdf", "tables": [{"page_number": 1, "table_data": [{"col_0": "x"}]}]},
			"doc-a": {"filename": "a.pdf", "tables": []}
		}`)

		dossiers, err := model.ParseDossiers(doc)

		Convey("Then dossiers follow document order", func() {
			So(err, ShouldBeNil)
			So(dossiers, ShouldHaveLength, 2)
			So(dossiers[0].Source, ShouldEqual, "doc-b")
			So(dossiers[0].Name(), ShouldEqual, "b.pdf")
			So(dossiers[0].Tables, ShouldHaveLength, 1)
			So(dossiers[1].Tables, ShouldBeEmpty)
		})
	})

	Convey("Given a malformed document", t, func() {
		_, err := model.ParseDossiers([]byte(`{"doc": 3}`))

		Convey("Then an error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTableClone(t *testing.T) {
	Convey("Given a table snapshot", t, func() {
		orig := model.Table{PageNumber: model.IntPtr(2), Headers: []string{"a"}, Data: [][]string{{"1"}}}

		Convey("When the clone is modified", func() {
			c := orig.Clone()
			c.Headers[0] = "b"
			c.Data[0][0] = "2"
			*c.PageNumber = 9

			Convey("Then the original is untouched", func() {
				So(orig.Headers[0], ShouldEqual, "a")
				So(orig.Data[0][0], ShouldEqual, "1")
				So(*orig.PageNumber, ShouldEqual, 2)
			})
		})
	})
}
