package sim

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/motesim/sim/config"
	"github.com/sarchlab/motesim/sim/serialization"
)

var _ = Describe("Engine configuration", func() {
	var (
		mockCtrl *gomock.Controller
		types    *serialization.TypeRegistry
		src, dst *Engine
		medium   *recordingMedium
		u1, u2   *countingUnit
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		types = serialization.NewTypeRegistry()
		Expect(types.RegisterType(&countingUnit{})).To(Succeed())
		Expect(types.RegisterType(&recordingMedium{})).To(Succeed())
		Expect(types.RegisterType(&namedType{})).To(Succeed())

		src = MakeEngineBuilder().
			WithLogger(quietLogger()).
			WithTypeResolver(types).
			WithTitle("demo").
			WithDelayTime(7).
			WithTickTime(3).
			WithSimulationTime(42).
			Build()

		medium = &recordingMedium{name: "udgm"}
		src.SetMedium(context.Background(), medium)
		src.AddUnitType(context.Background(), &namedType{id: "sky"})

		u1 = &countingUnit{}
		u1.ticks.Store(4)
		u2 = &countingUnit{}
		src.AddUnit(context.Background(), u1)
		src.AddUnit(context.Background(), u2)

		dst = MakeEngineBuilder().
			WithLogger(quietLogger()).
			WithTypeResolver(types).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should describe the simulation in order", func() {
		nodes := src.Config()

		names := make([]string, 0, len(nodes))
		for _, n := range nodes {
			names = append(names, n.Name)
		}

		Expect(names).To(Equal([]string{
			NodeTitle, NodeDelayTime, NodeSimTime, NodeTickTime,
			NodeMedium, NodeUnitType, NodeUnit, NodeUnit,
		}))
		Expect(nodes[4].Text).
			To(Equal("github.com/sarchlab/motesim/sim.recordingMedium"))
		Expect(nodes[6].Child("ticks").Text).To(Equal("4"))
	})

	It("should omit the medium when none is bound", func() {
		src.SetMedium(context.Background(), nil)

		for _, n := range src.Config() {
			Expect(n.Name).NotTo(Equal(NodeMedium))
		}
	})

	It("should restore a saved simulation", func() {
		root := config.NewNode(config.RootName, "", src.Config()...)

		buf := new(bytes.Buffer)
		Expect(config.NewXMLCodec().Encode(buf, root)).To(Succeed())
		decoded, err := config.NewXMLCodec().Decode(buf)
		Expect(err).NotTo(HaveOccurred())

		Expect(dst.RestoreConfig(context.Background(),
			decoded.Children, RestoreOptions{})).
			To(Succeed())

		Expect(dst.Title()).To(Equal("demo"))
		Expect(dst.DelayTime()).To(Equal(int64(7)))
		Expect(dst.TickTime()).To(Equal(int64(3)))
		Expect(dst.SimulationTime()).To(Equal(int64(42)))
		Expect(dst.UnitCount()).To(Equal(2))
		Expect(dst.UnitType("sky")).NotTo(BeNil())

		restored, ok := dst.Medium().(*recordingMedium)
		Expect(ok).To(BeTrue())
		Expect(restored.name).To(Equal("udgm"))
		Expect(restored.Units()).To(Equal(dst.Units()))

		Expect(dst.Unit(0).(*countingUnit).ticks.Load()).To(Equal(int64(4)))
		Expect(dst.Config()).To(HaveLen(len(src.Config())))
	})

	It("should keep what was applied before a failure", func() {
		nodes := []*config.Node{
			config.NewNode(NodeTitle, "partial"),
			config.NewNode(NodeMedium,
				serialization.TypeName(&recordingMedium{})),
			config.NewNode(NodeUnitType, "example.com/unknown.Type"),
			config.NewNode(NodeUnit, serialization.TypeName(&countingUnit{})),
		}

		err := dst.RestoreConfig(context.Background(), nodes, RestoreOptions{})

		Expect(err).To(MatchError(ErrRestoreFailed))
		Expect(err).To(MatchError(serialization.ErrTypeNotFound))
		Expect(dst.Title()).To(Equal("partial"))
		Expect(dst.Medium()).NotTo(BeNil())
		Expect(dst.UnitCount()).To(Equal(0))
	})

	It("should unbind the medium if it cannot be created", func() {
		dst.SetMedium(context.Background(), &recordingMedium{})

		err := dst.RestoreConfig(context.Background(), []*config.Node{
			config.NewNode(NodeMedium, "example.com/unknown.Medium"),
		}, RestoreOptions{})

		Expect(err).To(MatchError(ErrMediumUnavailable))
		Expect(dst.Medium()).To(BeNil())
	})

	It("should reject a type that is not a medium", func() {
		err := dst.RestoreConfig(context.Background(), []*config.Node{
			config.NewNode(NodeMedium,
				serialization.TypeName(&countingUnit{})),
		}, RestoreOptions{})

		Expect(err).To(MatchError(ErrMediumUnavailable))
		Expect(err).To(MatchError(serialization.ErrTypeMismatch))
	})

	It("should abort when the user rejects the simulation", func() {
		confirmer := NewMockConfirmer(mockCtrl)
		confirmer.EXPECT().ConfirmOrEdit(dst).Return(false)

		err := dst.RestoreConfig(context.Background(), src.Config(), RestoreOptions{
			Interactive: true,
			Confirmer:   confirmer,
		})

		Expect(err).To(MatchError(ErrRestoreAborted))
		Expect(dst.Title()).To(Equal("demo"))
		Expect(dst.UnitCount()).To(Equal(0))
	})

	It("should ignore the medium config when the user swaps the medium",
		func() {
			other := NewMockMedium(mockCtrl)
			other.EXPECT().RegisterUnit(gomock.Any()).Times(2)

			confirmer := NewMockConfirmer(mockCtrl)
			confirmer.EXPECT().ConfirmOrEdit(dst).
				DoAndReturn(func(e *Engine) bool {
					e.SetMedium(context.Background(), other)
					return true
				})

			err := dst.RestoreConfig(context.Background(), src.Config(), RestoreOptions{
				Interactive: true,
				Confirmer:   confirmer,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(dst.Medium()).To(BeIdenticalTo(other))
			Expect(dst.UnitCount()).To(Equal(2))
		})

	It("should ignore unknown nodes", func() {
		err := dst.RestoreConfig(context.Background(), []*config.Node{
			config.NewNode("plugin", "example.com/Visualizer"),
			config.NewNode(NodeTitle, "known"),
		}, RestoreOptions{})

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.Title()).To(Equal("known"))
	})

	It("should fail on malformed numbers", func() {
		err := dst.RestoreConfig(context.Background(), []*config.Node{
			config.NewNode(NodeDelayTime, "soon"),
		}, RestoreOptions{})

		Expect(err).To(MatchError(ErrRestoreFailed))
	})

	It("should fail on an invalid tick time", func() {
		err := dst.RestoreConfig(context.Background(), []*config.Node{
			config.NewIntNode(NodeTickTime, 0),
		}, RestoreOptions{})

		Expect(err).To(MatchError(ErrInvalidTickTime))
		Expect(dst.TickTime()).To(Equal(int64(1)))
	})

	It("should fail without a type resolver", func() {
		e := MakeEngineBuilder().
			WithLogger(quietLogger()).
			WithTypeResolver(nil).
			Build()

		err := e.RestoreConfig(context.Background(), src.Config(), RestoreOptions{})

		Expect(err).To(HaveOccurred())
	})
})
