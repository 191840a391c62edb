package profile_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/profile"
	"github.com/okian/tvi/internal/domain/zone"
	. "github.com/smartystreets/goconvey/convey"
)

func ev(game, player, name string, x, y float64) model.RawActionEvent {
	return model.RawActionEvent{GameID: game, TeamID: "t1", PlayerID: player, EventName: name, X: x, Y: y}
}

func quadGrid() *zone.Grid {
	g, err := zone.NewGrid(zone.WithShape(2, 2), zone.WithZoneMap([]string{"1", "2", "3", "4"}))
	if err != nil {
		panic(err)
	}
	return g
}

func TestBuild(t *testing.T) {
	Convey("Given events for two players over two games", t, func() {
		ctx := context.Background()
		events := []model.RawActionEvent{
			ev("g1", "p1", "Tackle", 10, 10),
			ev("g1", "p1", "Tackle", 20, 20),
			ev("g1", "p1", "Tackle", 80, 80),
			ev("g1", "p2", "key_pass", 90, 10),
			ev("g2", "p1", "Interception", 60, 60),
			ev("g1", "p1", "Aerial", 100, 100),
		}

		table, err := profile.Build(ctx, events, quadGrid())
		So(err, ShouldBeNil)

		Convey("Then one profile exists per player-match in first-seen order", func() {
			keys := make([]model.MatchKey, len(table.Profiles))
			for i, p := range table.Profiles {
				keys[i] = p.Key
			}
			want := []model.MatchKey{
				{GameID: "g1", TeamID: "t1", PlayerID: "p1"},
				{GameID: "g1", TeamID: "t1", PlayerID: "p2"},
				{GameID: "g2", TeamID: "t1", PlayerID: "p1"},
			}
			So(cmp.Diff(want, keys), ShouldBeEmpty)
		})

		Convey("Then columns are the sorted union of composite keys", func() {
			So(table.Columns, ShouldResemble, []string{
				"Aerial_4", "Interception_4", "Tackle_1", "Tackle_4", "key_pass_2",
			})
		})

		Convey("Then counts sum to the number of events per key", func() {
			So(table.Profiles[0].Counts, ShouldResemble, map[string]int{"Tackle_1": 2, "Tackle_4": 1, "Aerial_4": 1})
			So(table.Profiles[0].Total(), ShouldEqual, 4)
			So(table.Profiles[1].Total(), ShouldEqual, 1)
			So(table.Profiles[2].Total(), ShouldEqual, 1)
		})

		Convey("Then dense rows fill absent columns with zero", func() {
			So(table.Dense(1), ShouldResemble, []float64{0, 0, 0, 0, 1})
			So(table.Dense(0), ShouldResemble, []float64{1, 0, 2, 1, 0})
		})
	})

	Convey("Given an event with a non-finite coordinate", t, func() {
		_, err := profile.Build(context.Background(), []model.RawActionEvent{ev("g1", "p1", "Tackle", math.NaN(), 1)}, quadGrid())

		Convey("Then the build fails naming the event", func() {
			So(errors.Is(err, zone.ErrInvalidCoordinate), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "player p1")
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := profile.BuildPartition(ctx, nil, quadGrid())
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})

	Convey("Given no events", t, func() {
		table, err := profile.Build(context.Background(), nil, quadGrid())
		So(err, ShouldBeNil)
		So(table.Profiles, ShouldBeEmpty)
		So(table.Columns, ShouldBeEmpty)
	})
}

func TestSplitAndMerge(t *testing.T) {
	Convey("Given a batch spanning three games", t, func() {
		ctx := context.Background()
		events := []model.RawActionEvent{
			ev("g2", "p1", "Tackle", 10, 10),
			ev("g1", "p1", "Tackle", 10, 10),
			ev("g2", "p2", "Aerial", 70, 70),
			ev("g3", "p3", "Take On", 70, 20),
			ev("g1", "p1", "Tackle", 90, 90),
		}

		parts := profile.Split(events)

		Convey("Then partitions follow first-seen game order", func() {
			So(len(parts), ShouldEqual, 3)
			So(parts[0].GameID, ShouldEqual, "g2")
			So(parts[1].GameID, ShouldEqual, "g1")
			So(parts[2].GameID, ShouldEqual, "g3")
			So(len(parts[0].Events), ShouldEqual, 2)
		})

		Convey("When each partition is built and merged", func() {
			built := make([][]profile.Profile, len(parts))
			for i, p := range parts {
				var err error
				built[i], err = profile.BuildPartition(ctx, p.Events, quadGrid())
				So(err, ShouldBeNil)
			}
			merged := profile.Merge(built...)
			whole, err := profile.Build(ctx, events, quadGrid())
			So(err, ShouldBeNil)

			Convey("Then the columns match a sequential build", func() {
				So(merged.Columns, ShouldResemble, whole.Columns)
				So(len(merged.Profiles), ShouldEqual, len(whole.Profiles))
			})
		})

		Convey("When the same key appears in two parts", func() {
			key := model.MatchKey{GameID: "g1", TeamID: "t1", PlayerID: "p1"}
			merged := profile.Merge(
				[]profile.Profile{{Key: key, Counts: map[string]int{"Tackle_1": 1}}},
				[]profile.Profile{{Key: key, Counts: map[string]int{"Tackle_1": 2, "Aerial_2": 1}}},
			)

			Convey("Then counts are summed into one profile", func() {
				So(len(merged.Profiles), ShouldEqual, 1)
				So(merged.Profiles[0].Counts, ShouldResemble, map[string]int{"Tackle_1": 3, "Aerial_2": 1})
			})
		})
	})
}
