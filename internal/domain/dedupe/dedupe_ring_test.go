package dedupe

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBoundedRingGrowth(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper bounded far above the tables it sees", t, func() {
		d := NewInMemoryDeduper(WithMaxSize(100_000)).(*inMemoryDeduper)
		So(d.ring, ShouldBeEmpty)

		for i := 0; i < 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("hash-%d", i))
		}

		Convey("Then the ring holds only what was recorded", func() {
			So(d.ring, ShouldHaveLength, 3)
			So(cap(d.ring), ShouldBeLessThan, 100)
			So(d.Size(), ShouldEqual, 3)
		})
	})

	Convey("Given a full ring", t, func() {
		d := NewInMemoryDeduper(WithMaxSize(2)).(*inMemoryDeduper)
		for _, h := range []string{"a", "b", "c"} {
			d.SeenAndRecord(ctx, h)
		}

		Convey("Then it overwrites in place", func() {
			So(d.ring, ShouldResemble, []string{"c", "b"})
			So(d.seen, ShouldNotContainKey, "a")
		})
	})
}
