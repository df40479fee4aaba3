package eq500x

import (
	"fmt"
	"testing"

	"github.com/w1xm/lx200_interface/mount"
)

func TestSelectAdjustment(t *testing.T) {
	for _, test := range []struct {
		delta int
		want  mount.SlewRate
	}{
		{0, mount.SlewGuide},
		{1, mount.SlewGuide},
		{-42, mount.SlewGuide},
		{43, mount.SlewCentering},
		{-600, mount.SlewCentering},
		{601, mount.SlewFind},
		{20 * 60, mount.SlewFind},
		{5 * 3600, mount.SlewFind},
		{-5*3600 - 1, mount.SlewMax},
		{360 * 3600, mount.SlewMax},
		{400 * 3600, mount.SlewMax},
	} {
		t.Run(fmt.Sprint(test.delta), func(t *testing.T) {
			if got := adjustments[selectAdjustment(test.delta)].rate; got != test.want {
				t.Errorf("selectAdjustment(%d) = %v, want %v", test.delta, got, test.want)
			}
		})
	}
}

func TestCheckAdjustments(t *testing.T) {
	if err := checkAdjustments(adjustments[:]); err != nil {
		t.Errorf("built-in table: %v", err)
	}
	for name, table := range map[string][]adjustment{
		"gap": {
			{mount.SlewGuide, 1, 42, 0},
			{mount.SlewCentering, 60, 600, 0},
		},
		"inverted": {
			{mount.SlewGuide, 50, 42, 0},
		},
	} {
		if err := checkAdjustments(table); err == nil {
			t.Errorf("%s: checkAdjustments succeeded", name)
		}
	}
}

func TestAdjustmentsOrdered(t *testing.T) {
	for i := 1; i < len(adjustments); i++ {
		a, b := adjustments[i-1], adjustments[i]
		if b.rate <= a.rate || b.distance <= a.distance || b.pollInterval < a.pollInterval {
			t.Errorf("%v is not slower than %v", a.rate, b.rate)
		}
	}
}
