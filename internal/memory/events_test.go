package memory_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/tabletriage/internal/memory"
	. "github.com/smartystreets/goconvey/convey"
)

type eventLine struct {
	RunID        string               `json:"run_id"`
	Dossier      string               `json:"dossier"`
	Stage        memory.Stage         `json:"stage"`
	Family       string               `json:"family"`
	ChosenRecipe string               `json:"chosen_recipe"`
	Outcome      string               `json:"outcome"`
	Recipes      []memory.TriedRecipe `json:"recipes_tried"`
}

func readEvents(path string) []eventLine {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	var out []eventLine
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var ev eventLine
		So(json.Unmarshal(sc.Bytes(), &ev), ShouldBeNil)
		out = append(out, ev)
	}
	So(sc.Err(), ShouldBeNil)
	return out
}

func TestEventLog(t *testing.T) {
	ctx := context.Background()

	Convey("Given an event log in a nested directory", t, func() {
		path := filepath.Join(t.TempDir(), "review", "learning_events.jsonl")
		el, err := memory.NewEventLog(path)
		So(err, ShouldBeNil)

		Convey("When events are written and the log closed", func() {
			So(el.Write(ctx, memory.LearningEvent{RunID: "r1", Stage: memory.StagePreGate, Outcome: memory.OutcomeWin}), ShouldBeNil)
			So(el.Write(ctx, memory.LearningEvent{RunID: "r1", Stage: memory.StagePostGate, Outcome: memory.OutcomeNeutral}), ShouldBeNil)
			So(el.Close(), ShouldBeNil)

			Convey("Then one line per event is appended", func() {
				evs := readEvents(path)
				So(evs, ShouldHaveLength, 2)
				So(evs[0].Stage, ShouldEqual, memory.StagePreGate)
				So(evs[1].Outcome, ShouldEqual, memory.OutcomeNeutral)
			})

			Convey("Then further writes fail", func() {
				err := el.Write(ctx, memory.LearningEvent{})
				So(errors.Is(err, os.ErrClosed), ShouldBeTrue)
				So(el.Close(), ShouldBeNil)
			})
		})

		Convey("When the log is reopened", func() {
			So(el.Write(ctx, memory.LearningEvent{RunID: "first"}), ShouldBeNil)
			So(el.Close(), ShouldBeNil)
			again, err := memory.NewEventLog(path)
			So(err, ShouldBeNil)
			So(again.Write(ctx, memory.LearningEvent{RunID: "second"}), ShouldBeNil)
			So(again.Flush(), ShouldBeNil)
			So(again.Close(), ShouldBeNil)

			Convey("Then earlier events are kept", func() {
				evs := readEvents(path)
				So(evs, ShouldHaveLength, 2)
				So(evs[0].RunID, ShouldEqual, "first")
				So(evs[1].RunID, ShouldEqual, "second")
			})
		})
	})

	Convey("Given an open event log", t, func() {
		path := filepath.Join(t.TempDir(), "events.jsonl")
		el, err := memory.NewEventLog(path)
		So(err, ShouldBeNil)
		defer el.Close()

		So(el.Write(ctx, memory.LearningEvent{RunID: "live"}), ShouldBeNil)

		Convey("Then the event is on disk before close", func() {
			evs := readEvents(path)
			So(evs, ShouldHaveLength, 1)
			So(evs[0].RunID, ShouldEqual, "live")
		})
	})

	Convey("Given an event log flushing every third event", t, func() {
		path := filepath.Join(t.TempDir(), "events.jsonl")
		el, err := memory.NewEventLog(path, memory.WithEventFlushEvery(3))
		So(err, ShouldBeNil)
		defer el.Close()

		So(el.Write(ctx, memory.LearningEvent{RunID: "a"}), ShouldBeNil)
		So(el.Write(ctx, memory.LearningEvent{RunID: "b"}), ShouldBeNil)
		So(readEvents(path), ShouldBeEmpty)

		So(el.Write(ctx, memory.LearningEvent{RunID: "c"}), ShouldBeNil)
		So(readEvents(path), ShouldHaveLength, 3)
	})

	Convey("Given a size-bounded event log", t, func() {
		path := filepath.Join(t.TempDir(), "events.jsonl")
		el, err := memory.NewEventLog(path, memory.WithEventMaxSize(1), memory.WithEventBufSize(128))
		So(err, ShouldBeNil)

		So(el.Write(ctx, memory.LearningEvent{RunID: "a"}), ShouldBeNil)
		So(el.Write(ctx, memory.LearningEvent{RunID: "b"}), ShouldBeNil)
		So(el.Close(), ShouldBeNil)

		Convey("Then the previous file is rotated aside", func() {
			cur := readEvents(path)
			prev := readEvents(path + ".1")
			So(cur, ShouldHaveLength, 1)
			So(cur[0].RunID, ShouldEqual, "b")
			So(prev, ShouldHaveLength, 1)
			So(prev[0].RunID, ShouldEqual, "a")
		})
	})
}
