package graph

import (
	"testing"

	"github.com/oxy-arcana/rendergraph/driver"
)

func TestStoreAddNodeRejectsNonProducerWrite(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	target := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)

	other := s.ReserveNode()
	err := s.AddNode(other, "intruder", []TargetID{target}, nil, func(RenderContext) error { return nil })
	if err == nil {
		t.Fatal("AddNode() should reject a node writing a target it did not produce")
	}
}

func TestStoreAddNodeRejectsReadBeforeProducerAdded(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	target := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)

	reader := s.ReserveNode()
	err := s.AddNode(reader, "reader", nil, []TargetID{target}, func(RenderContext) error { return nil })
	if err == nil {
		t.Fatal("AddNode() should reject reading a target whose producer node has not been added yet")
	}
}

func TestStoreAddNodeRejectsReAddingSameID(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	target := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)
	if err := s.AddNode(producer, "producer", []TargetID{target}, nil, func(RenderContext) error { return nil }); err != nil {
		t.Fatalf("AddNode(producer) error = %v", err)
	}
	if err := s.AddNode(producer, "producer-again", nil, nil, func(RenderContext) error { return nil }); err == nil {
		t.Fatal("AddNode() should reject re-adding an already-added node id")
	}
}

func TestStoreAddNodeRejectsTargetInBothWriteAndReadSets(t *testing.T) {
	s := NewStore()
	upstream := s.ReserveNode()
	up := s.NewImageTarget("upstream", upstream, driver.ImageDescriptor{}, driver.StageColorOutput)
	if err := s.AddNode(upstream, "upstream", []TargetID{up}, nil, func(RenderContext) error { return nil }); err != nil {
		t.Fatalf("AddNode(upstream) error = %v", err)
	}

	self := s.ReserveNode()
	selfTarget := s.NewImageTarget("self", self, driver.ImageDescriptor{}, driver.StageColorOutput)
	err := s.AddNode(self, "both", []TargetID{selfTarget}, []TargetID{selfTarget}, func(RenderContext) error { return nil })
	if err == nil {
		t.Fatal("AddNode() should reject a node naming the same target in both its write and read sets")
	}
}

func TestStoreNewVersionRequiresPriorRead(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	target := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)

	_, err := s.NewVersion(target, producer, driver.StageColorOutput)
	if err == nil {
		t.Fatal("NewVersion() should reject bumping a version with no recorded reader")
	}

	if err := s.RecordRead(target, driver.StageFragment); err != nil {
		t.Fatalf("RecordRead() error = %v", err)
	}
	v1, err := s.NewVersion(target, producer, driver.StageColorOutput)
	if err != nil {
		t.Fatalf("NewVersion() after RecordRead error = %v", err)
	}
	if v1.Version() != 1 {
		t.Fatalf("new version = %d, want 1", v1.Version())
	}
	if got := s.WaitMask(v1); got != driver.StageFragment {
		t.Fatalf("WaitMask(v1) = %v, want %v (the prior version's reader stages)", got, driver.StageFragment)
	}
}

func TestStoreBindPresentationRejectsBufferTarget(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	buf := s.NewBufferTarget("scratch", producer, driver.BufferDescriptor{}, driver.StageCompute)
	if err := s.BindPresentation(Window(1), buf); err == nil {
		t.Fatal("BindPresentation() should reject a buffer target")
	}
}

func TestStorePresentIsIdempotentForSameBinding(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	img := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)

	if err := s.Present(Window(1), img); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if err := s.Present(Window(1), img); err != nil {
		t.Fatalf("Present() second call error = %v", err)
	}
	bound, ok := s.PresentationBinding(Window(1))
	if !ok || bound != img {
		t.Fatalf("PresentationBinding() = (%v, %v), want (%v, true)", bound, ok, img)
	}
}

func TestStoreUnbindPresentationRemovesBinding(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	img := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)
	if err := s.BindPresentation(Window(1), img); err != nil {
		t.Fatalf("BindPresentation() error = %v", err)
	}
	s.UnbindPresentation(Window(1))
	if _, ok := s.PresentationBinding(Window(1)); ok {
		t.Fatal("PresentationBinding() should report false after UnbindPresentation")
	}
}

func TestStoreLatestVersionTracksAppendedVersions(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	v0 := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)
	if err := s.RecordRead(v0, driver.StageFragment); err != nil {
		t.Fatalf("RecordRead() error = %v", err)
	}
	v1, err := s.NewVersion(v0, producer, driver.StageColorOutput)
	if err != nil {
		t.Fatalf("NewVersion() error = %v", err)
	}
	if latest := s.LatestVersion(v0); latest != v1 {
		t.Fatalf("LatestVersion(v0) = %v, want %v", latest, v1)
	}
}

func TestTargetIDBaseStripsVersion(t *testing.T) {
	s := NewStore()
	producer := s.ReserveNode()
	v0 := s.NewImageTarget("color", producer, driver.ImageDescriptor{}, driver.StageColorOutput)
	if err := s.RecordRead(v0, driver.StageFragment); err != nil {
		t.Fatalf("RecordRead() error = %v", err)
	}
	v1, err := s.NewVersion(v0, producer, driver.StageColorOutput)
	if err != nil {
		t.Fatalf("NewVersion() error = %v", err)
	}
	if v1.Base() != v0.Base() {
		t.Fatalf("Base() differs across versions of the same target: %v vs %v", v1.Base(), v0.Base())
	}
	if v1.Raw() != v0.Raw() {
		t.Fatalf("Raw() differs across versions of the same target: %v vs %v", v1.Raw(), v0.Raw())
	}
}
