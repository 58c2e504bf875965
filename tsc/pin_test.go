package tsc

import (
	"strings"
	"testing"
)

type recordingMux struct {
	calls []PinID
	af    uint8
}

func (m *recordingMux) SetAltFunc(id PinID, af uint8) {
	m.calls = append(m.calls, id)
	m.af = af
}

func TestPinTable(t *testing.T) {
	if len(pinTable) != 32 {
		t.Fatalf("Expected 32 pin mappings, got %d", len(pinTable))
	}

	perGroup := make(map[uint8]int)
	for id, m := range pinTable {
		perGroup[m.Group]++
		if m.ReducedSensitivity && id != PA4 {
			t.Errorf("%v: unexpected reduced sensitivity", id)
		}
	}
	for g := uint8(1); g <= NumGroups; g++ {
		if perGroup[g] != 4 {
			t.Errorf("Group %d: expected 4 pins, got %d", g, perGroup[g])
		}
	}
}

func TestDescriptorPositions(t *testing.T) {
	tests := []struct {
		id      PinID
		group   uint8
		bitPos  uint8
		reduced bool
	}{
		{PA0, 1, 0, false},
		{PA4, 2, 4, true},
		{PC5, 3, 8, false},
		{PB13, 6, 22, false},
		{PB14, 6, 23, false},
		{PC9, 8, 31, false},
	}
	for _, tc := range tests {
		d, err := NewDescriptor(tc.id, nil)
		if err != nil {
			t.Errorf("%v: %v", tc.id, err)
			continue
		}
		if d.Group() != tc.group {
			t.Errorf("%v: expected group %d, got %d", tc.id, tc.group, d.Group())
		}
		if BitPos(d) != tc.bitPos {
			t.Errorf("%v: expected bit %d, got %d", tc.id, tc.bitPos, BitPos(d))
		}
		if d.ReducedSensitivity() != tc.reduced {
			t.Errorf("%v: expected reduced sensitivity %v", tc.id, tc.reduced)
		}
	}
}

func TestDescriptorNoMapping(t *testing.T) {
	for _, id := range []PinID{portA + 8, portB + 5, portC + 13, 60} {
		if _, err := NewDescriptor(id, nil); err != ErrNoMapping {
			t.Errorf("%v: expected %v, got %v", id, ErrNoMapping, err)
		}
	}
}

func TestDescriptorSetup(t *testing.T) {
	mux := &recordingMux{}
	d, err := NewDescriptor(PB13, mux)
	if err != nil {
		t.Fatal(err)
	}

	d.Setup()
	d.Setup()

	if len(mux.calls) != 2 || mux.calls[0] != PB13 {
		t.Errorf("Expected two SetAltFunc calls for PB13, got %v", mux.calls)
	}
	if mux.af != AltFuncTSC {
		t.Errorf("Expected AF%d, got AF%d", AltFuncTSC, mux.af)
	}
}

func TestPinIDString(t *testing.T) {
	tests := map[PinID]string{
		PA0:  "PA0",
		PA12: "PA12",
		PB13: "PB13",
		PC9:  "PC9",
	}
	for id, want := range tests {
		if got := id.String(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	}
}

func TestParsePin(t *testing.T) {
	tests := []struct {
		name string
		id   PinID
		err  error
	}{
		{"PB13", PB13, nil},
		{"pa0", PA0, nil},
		{"PC9", PC9, nil},
		{"PA8", 8, nil},
		{"PB16", 0, ErrBadPinName},
		{"PB01", 0, ErrBadPinName},
		{"PZ1", 0, ErrBadPinName},
		{"B13", 0, ErrBadPinName},
		{"PB1x", 0, ErrBadPinName},
	}
	for _, tc := range tests {
		id, err := ParsePin(tc.name)
		if err != tc.err {
			t.Errorf("%s: expected error %v, got %v", tc.name, tc.err, err)
			continue
		}
		if err == nil && id != tc.id {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.id, id)
		}
		if err == nil && id.String() != strings.ToUpper(tc.name) {
			t.Errorf("%s: round trip gave %s", tc.name, id)
		}
	}
}
