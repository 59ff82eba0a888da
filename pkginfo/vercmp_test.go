package pkginfo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerCmp(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		// plain numeric ordering
		{"1.5.0", "1.5.0", 0},
		{"1.5.1", "1.5.0", 1},
		{"1.5.1", "1.5", 1},
		{"1.6", "1.5", 1},
		{"1.10", "1.9", 1},
		{"1.0010", "1.9", 1},

		// mixed alpha and numeric segments
		{"1.5b", "1.5", -1},
		{"1.5b", "1.5.1", -1},
		{"1.5.b", "1.5", 1},
		{"1.5.a", "1.5", 1},
		{"1.5.b", "1.5.a", 1},
		{"alpha", "beta", -1},
		{"1.0a", "1.0alpha", -1},
		{"1.0alpha", "1.0b", -1},
		{"1.0b", "1.0beta", -1},
		{"1.0beta", "1.0rc", -1},
		{"1.0rc", "1.0", -1},

		// separator handling
		{"2.0", "2_0", 0},
		{"2.0_a", "2_0.a", 0},
		{"2.0a", "2.0.a", -1},
		{"1..0", "1.0", 1},
		{"1..0", "1..0", 0},
		{"1..1", "1..0", 1},

		// leading zeroes
		{"1.001", "1.1", 0},
		{"1.001a", "1.1a", 0},

		// epoch dominates everything else
		{"0:1.0", "1.0", 0},
		{"1:1.0", "1.0", 1},
		{"1:1.0", "2.0", 1},
		{"1:1.0", "2.0-1", 1},
		{"2:1.0", "1:2.0", 1},

		// release is only compared when both sides carry one
		{"1.5", "1.5-1", 0},
		{"1.5-1", "1.5", 0},
		{"1.5-1", "1.5-2", -1},
		{"1.5-2", "1.5-1", 1},
		{"1.5.1-1", "1.5-2", 1},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_vs_%s", tc.a, tc.b), func(t *testing.T) {
			assert.Equal(t, tc.want, VerCmp(tc.a, tc.b),
				"VerCmp(%q, %q)", tc.a, tc.b)
			assert.Equal(t, -tc.want, VerCmp(tc.b, tc.a),
				"VerCmp(%q, %q)", tc.b, tc.a)
		})
	}
}
