package infra

import "testing"

func TestIsTruthyEnv(t *testing.T) {
	cases := map[string]bool{"1": true, "TRUE": true, " yes ": true, "0": false, "": false, "no": false}
	for val, want := range cases {
		t.Setenv("BAKEASSIST_TEST_FLAG", val)
		if got := IsTruthyEnv("BAKEASSIST_TEST_FLAG"); got != want {
			t.Fatalf("IsTruthyEnv(%q) = %v, want %v", val, got, want)
		}
	}
}
