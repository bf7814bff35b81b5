package types

import "testing"

func TestEpochsGetEpoch(t *testing.T) {
	var epochs Epochs
	epochs.NewEpoch(0)
	epochs.NewEpoch(100)
	epochs.NewEpoch(250)

	tests := []struct {
		height BlockHeight
		epoch  Epoch
		known  bool
	}{
		{0, 0, true},
		{99, 0, true},
		{100, 1, true},
		{249, 1, true},
		{250, 2, true},
		{1000, 2, true},
	}
	for _, tt := range tests {
		epoch, known := epochs.GetEpoch(tt.height)
		if known != tt.known || epoch != tt.epoch {
			t.Errorf("GetEpoch(%d) = (%d, %v), want (%d, %v)", tt.height, epoch, known, tt.epoch, tt.known)
		}
	}
}

func TestEpochsGetEpochUnknown(t *testing.T) {
	var epochs Epochs
	epochs.FirstKnownEpoch = 3
	epochs.NewEpoch(50)

	if _, known := epochs.GetEpoch(49); known {
		t.Error("height below the first known epoch should be unknown")
	}
	if epoch, known := epochs.GetEpoch(50); !known || epoch != 3 {
		t.Errorf("GetEpoch(50) = (%d, %v), want (3, true)", epoch, known)
	}
}

func TestHeightPrev(t *testing.T) {
	if BlockHeight(5).Prev() != 4 {
		t.Error("Prev of 5 should be 4")
	}
	if BlockHeight(0).Prev() != 0 {
		t.Error("Prev saturates at 0")
	}
	if BlockHeight(101).Raw() != "101" {
		t.Error("Raw renders decimal")
	}
}
