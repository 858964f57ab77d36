package model_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/planetforge/engine/internal/domain/model"
)

func TestSkillSet(t *testing.T) {
	Convey("Given a skill set", t, func() {
		s := model.SkillSet{
			model.SkillAlgorithmMastery:  10,
			model.SkillWebDevelopment:    20,
			model.SkillAPIDesign:         30,
			model.SkillDevopsMaturity:    40,
			model.SkillSecurityAwareness: 50,
		}

		Convey("Then Sum and Mean cover the canonical skills", func() {
			So(s.Sum(), ShouldEqual, 150)
			So(s.Mean(), ShouldEqual, 30)
		})

		Convey("And non-canonical keys are ignored", func() {
			s["made_up_skill"] = 1000
			So(s.Sum(), ShouldEqual, 150)
		})

		Convey("And Clone is independent", func() {
			c := s.Clone()
			c[model.SkillAlgorithmMastery] = 99
			So(s[model.SkillAlgorithmMastery], ShouldEqual, 10)
		})

		Convey("And ZeroSkills starts every skill at zero", func() {
			z := model.ZeroSkills()
			So(len(z), ShouldEqual, len(model.Skills()))
			So(z.Sum(), ShouldEqual, 0)
		})
	})
}

func TestStageIndex(t *testing.T) {
	Convey("Given the stage order", t, func() {
		Convey("Then stages index in ascending order", func() {
			for i, st := range model.Stages() {
				So(st.Index(), ShouldEqual, i)
			}
		})

		Convey("And an unknown stage has index -1", func() {
			So(model.Stage("gas_giant").Index(), ShouldEqual, -1)
		})

		Convey("And transitions compare by index", func() {
			So(model.StageTranscended.Index(), ShouldBeGreaterThan, model.StageProtoplanet.Index())
		})
	})
}

func TestMetricsSampleRatios(t *testing.T) {
	Convey("Given a metrics sample", t, func() {
		m := model.MetricsSample{Lines: 200, Functions: 10, Comments: 30}

		Convey("Then ratios derive from line count", func() {
			So(m.CommentRatio(), ShouldEqual, 0.15)
			So(m.FunctionDensity(), ShouldEqual, 0.05)
		})

		Convey("And an empty sample does not divide by zero", func() {
			empty := model.MetricsSample{Comments: 3, Functions: 2}
			So(empty.CommentRatio(), ShouldEqual, 3)
			So(empty.FunctionDensity(), ShouldEqual, 2)
		})
	})
}

func TestPlanetClone(t *testing.T) {
	Convey("Given a planet", t, func() {
		p := &model.Planet{
			ID:      "planet-1",
			OwnerID: "user-1",
			Skills:  model.SkillSet{model.SkillAlgorithmMastery: 12},
			Traits:  map[string]float64{"focus": 40},
			Stage:   model.StageYoungWorld,
		}

		Convey("When cloned", func() {
			c := p.Clone()
			c.Skills[model.SkillAlgorithmMastery] = 99
			c.Traits["focus"] = 1

			Convey("Then the original is untouched", func() {
				So(p.Skills[model.SkillAlgorithmMastery], ShouldEqual, 12)
				So(p.Traits["focus"], ShouldEqual, 40)
			})
		})

		Convey("Then State captures the tracked fields", func() {
			st := p.State()
			So(st.Stage, ShouldEqual, model.StageYoungWorld)
			So(st.Skills[model.SkillAlgorithmMastery], ShouldEqual, 12)
		})
	})
}
