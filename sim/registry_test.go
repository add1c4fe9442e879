package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UnitRegistry", func() {
	var (
		r          *UnitRegistry
		u1, u2, u3 *countingUnit
	)

	BeforeEach(func() {
		r = NewUnitRegistry()
		u1 = &countingUnit{}
		u2 = &countingUnit{}
		u3 = &countingUnit{}
	})

	It("should keep units in insertion order", func() {
		Expect(r.Add(u1)).To(BeTrue())
		Expect(r.Add(u2)).To(BeTrue())
		Expect(r.Add(u3)).To(BeTrue())

		Expect(r.Len()).To(Equal(3))
		Expect(r.Unit(0)).To(BeIdenticalTo(u1))
		Expect(r.Unit(2)).To(BeIdenticalTo(u3))
		Expect(r.IndexOf(u2)).To(Equal(1))
	})

	It("should not add a unit twice", func() {
		r.Add(u1)

		Expect(r.Add(u1)).To(BeFalse())
		Expect(r.Len()).To(Equal(1))
	})

	It("should remove a unit and keep the order of the others", func() {
		r.Add(u1)
		r.Add(u2)
		r.Add(u3)

		Expect(r.Remove(u2)).To(BeTrue())

		Expect(r.Units()).To(Equal([]Unit{u1, u3}))
		Expect(r.IndexOf(u2)).To(Equal(-1))
	})

	It("should report removing an unknown unit", func() {
		r.Add(u1)

		Expect(r.Remove(u2)).To(BeFalse())
		Expect(r.Len()).To(Equal(1))
	})

	It("should not expose its internal list", func() {
		r.Add(u1)

		units := r.Units()
		units[0] = u2

		Expect(r.Unit(0)).To(BeIdenticalTo(u1))
	})

	It("should find the first type with an identifier", func() {
		t1 := &namedType{id: "sky"}
		t2 := &namedType{id: "sky"}
		r.AddType(t1)
		r.AddType(t2)

		Expect(r.TypeCount()).To(Equal(2))
		Expect(r.Type("sky")).To(BeIdenticalTo(t1))
		Expect(r.Type("contiki")).To(BeNil())
		Expect(r.Types()).To(Equal([]UnitType{t1, t2}))
	})
})
