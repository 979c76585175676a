package camera

import "testing"

func TestStubSourceReplaysInOrder(t *testing.T) {
	s := NewStubSource([]Frame{{Width: 1}, {Width: 2}})
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	f1, err := s.Read()
	if err != nil || f1.Width != 1 {
		t.Fatalf("first Read() = %+v, %v, want Width=1, nil", f1, err)
	}
	f2, err := s.Read()
	if err != nil || f2.Width != 2 {
		t.Fatalf("second Read() = %+v, %v, want Width=2, nil", f2, err)
	}
}

func TestStubSourceExhaustedReturnsError(t *testing.T) {
	s := NewStubSource(nil)
	s.Open()
	if _, err := s.Read(); err == nil {
		t.Error("expected error reading from exhausted stub source")
	}
}

func TestStubSourceReadBeforeOpenFails(t *testing.T) {
	s := NewStubSource([]Frame{{Width: 1}})
	if _, err := s.Read(); err == nil {
		t.Error("expected error reading before Open")
	}
}
