package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/profile"
	"github.com/okian/tvi/internal/domain/scoring"
	"github.com/okian/tvi/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func key(game, player string) model.MatchKey {
	return model.MatchKey{GameID: game, TeamID: "t1", PlayerID: player}
}

func TestScorerFormulas(t *testing.T) {
	Convey("Given a scorer with the default constant", t, func() {
		s := scoring.NewScorer()
		So(s.ScalingConstant(), ShouldEqual, 90.0/44.0)

		Convey("When a player activates 3 cells in 45 minutes", func() {
			Convey("Then TVI is C*3/45", func() {
				So(s.TVI(3, 45), ShouldAlmostEqual, 0.1364, 1e-4)
				So(s.TVI(2, 90), ShouldAlmostEqual, 0.0455, 1e-4)
			})
		})

		Convey("When the raw ratio exceeds one", func() {
			Convey("Then both indices are clipped to one", func() {
				So(s.TVI(44, 10), ShouldEqual, 1)
				So(s.TVIEntropy(5, 1), ShouldEqual, 1)
			})
		})

		Convey("When playtime is zero, negative or not finite", func() {
			Convey("Then both indices are zero", func() {
				for _, pt := range []float64{0, -10, math.NaN(), math.Inf(1)} {
					So(s.TVI(5, pt), ShouldEqual, 0)
					So(s.TVIEntropy(1.2, pt), ShouldEqual, 0)
				}
			})
		})
	})

	Convey("Given scaling constant overrides", t, func() {
		So(scoring.NewScorer(scoring.WithScalingConstant(2)).TVI(3, 60), ShouldEqual, 0.1)
		So(scoring.NewScorer(scoring.WithScalingConstant(-1)).ScalingConstant(), ShouldEqual, scoring.DefaultScalingConstant)
		So(scoring.NewScorer(scoring.WithScalingConstant(math.Inf(1))).ScalingConstant(), ShouldEqual, scoring.DefaultScalingConstant)
	})
}

func TestScorerScore(t *testing.T) {
	Convey("Given a profile table and playtime records", t, func() {
		ctx := context.Background()
		s := scoring.NewScorer(scoring.WithLogger(logger.Named("scoring-test")))
		table := profile.Table{
			Columns: []string{"Tackle_1", "Tackle_2", "key_pass_2"},
			Profiles: []profile.Profile{
				{Key: key("g1", "p1"), Counts: map[string]int{"Tackle_1": 2, "Tackle_2": 1, "key_pass_2": 1}},
				{Key: key("g1", "ghost"), Counts: map[string]int{"Tackle_1": 1}},
				{Key: key("g2", "p1"), Counts: map[string]int{"Tackle_1": 1, "key_pass_2": 1}},
			},
		}
		playTime := []model.PlayTimeRecord{
			{GameID: "g2", TeamID: "t1", PlayerID: "p1", PlayTime: 90, Position: "Midfielder"},
			{GameID: "g1", TeamID: "t1", PlayerID: "p1", PlayTime: 45, Position: "Defender"},
			{GameID: "g1", TeamID: "t1", PlayerID: "idle", PlayTime: 30},
			{GameID: "g1", TeamID: "t1", PlayerID: "bench", PlayTime: 0},
		}

		records, err := s.Score(ctx, table, playTime)
		So(err, ShouldBeNil)

		Convey("Then every playtime record appears once in playtime order", func() {
			So(len(records), ShouldEqual, 4)
			So(records[0].Key, ShouldResemble, key("g2", "p1"))
			So(records[1].Key, ShouldResemble, key("g1", "p1"))
			So(records[2].Key.PlayerID, ShouldEqual, "idle")
			So(records[3].Key.PlayerID, ShouldEqual, "bench")
		})

		Convey("Then matched rows carry diversity, entropy and TVI", func() {
			r := records[1]
			So(r.ActionDiversity, ShouldEqual, 3)
			So(r.ShannonEntropy, ShouldAlmostEqual, -(0.5*math.Log(0.5) + 2*0.25*math.Log(0.25)), 1e-12)
			So(r.TVI, ShouldAlmostEqual, (90.0/44.0)*3/45, 1e-12)
			So(r.TVIEntropy, ShouldAlmostEqual, r.ShannonEntropy/45, 1e-12)
			So(r.Position, ShouldEqual, "Defender")
			So(r.Counts["Tackle_1"], ShouldEqual, 2)
		})

		Convey("Then players without actions score zero", func() {
			r := records[2]
			So(r.ActionDiversity, ShouldEqual, 0)
			So(r.ShannonEntropy, ShouldEqual, 0)
			So(r.TVI, ShouldEqual, 0)
			So(r.Counts, ShouldBeEmpty)
		})

		Convey("Then zero playtime yields finite zero scores", func() {
			r := records[3]
			So(r.TVI, ShouldEqual, 0)
			So(r.TVIEntropy, ShouldEqual, 0)
		})

		Convey("Then all scores lie in [0, 1]", func() {
			for _, r := range records {
				So(r.TVI, ShouldBeBetweenOrEqual, 0, 1)
				So(r.TVIEntropy, ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("Then profiles without playtime are dropped", func() {
			for _, r := range records {
				So(r.Key.PlayerID, ShouldNotEqual, "ghost")
			}
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := scoring.NewScorer().Score(ctx, profile.Table{}, nil)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
