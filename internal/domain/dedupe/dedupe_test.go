package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/tabletriage/internal/domain/dedupe"
	"github.com/okian/tabletriage/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a hash is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "h1")
			second := d.SeenAndRecord(ctx, "h1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When many hashes are recorded", func() {
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("h-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "h-0"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, h := range []string{"h1", "h2", "h3", "h4"} {
			So(d.SeenAndRecord(ctx, h), ShouldBeFalse)
		}

		Convey("Then the oldest hash is evicted first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "h2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "h4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "h1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
		})

		Convey("Then the ring keeps wrapping without growing", func() {
			for _, h := range []string{"h5", "h6", "h7", "h8"} {
				So(d.SeenAndRecord(ctx, h), ShouldBeFalse)
			}
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "h8"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "h5"), ShouldBeFalse)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const workers, perWorker = 10, 100

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					d.SeenAndRecord(context.Background(), fmt.Sprintf("h-%d-%d", id, j))
				}
			}(i)
		}
		wg.Wait()

		So(d.Size(), ShouldEqual, int64(workers*perWorker))
	})
}

func TestContentHash(t *testing.T) {
	Convey("Given normalized table content", t, func() {
		in := dedupe.HashInput{
			Page:           model.IntPtr(40),
			Headers:        []string{"Particulars", "FY21", "FY22"},
			RawHeaderParts: [][]string{{"Particulars"}, {"FY21"}, {"FY22"}},
			Rows:           [][]string{{"Revenue", "1,234.5", "1,456.7"}},
		}

		Convey("Then the hash is stable hex md5", func() {
			h := dedupe.ContentHash(in)
			So(h, ShouldHaveLength, 32)
			So(dedupe.ContentHash(in), ShouldEqual, h)
		})

		Convey("Then the page is part of the identity", func() {
			other := in
			other.Page = model.IntPtr(41)
			So(dedupe.ContentHash(other), ShouldNotEqual, dedupe.ContentHash(in))
		})

		Convey("Then cell boundaries are part of the identity", func() {
			other := in
			other.Rows = [][]string{{"Revenue 1,234.5", "1,456.7", ""}}
			So(dedupe.ContentHash(other), ShouldNotEqual, dedupe.ContentHash(in))
		})

		Convey("Then rows past the limit do not matter", func() {
			long := make([][]string, 45)
			for i := range long {
				long[i] = []string{fmt.Sprint(i)}
			}
			a, b := in, in
			a.Rows = long
			b.Rows = append(append([][]string(nil), long[:40]...), []string{"changed"})
			So(dedupe.ContentHash(a), ShouldEqual, dedupe.ContentHash(b))
		})

		Convey("Then only the first 64 title runes matter", func() {
			t1 := fmt.Sprintf("%064d", 0) + "tail-a"
			t2 := fmt.Sprintf("%064d", 0) + "tail-b"
			a, b := in, in
			a.Title, b.Title = &t1, &t2
			So(dedupe.ContentHash(a), ShouldEqual, dedupe.ContentHash(b))
		})
	})
}
