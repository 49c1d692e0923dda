package version

import "testing"

func TestCurrentDefaults(t *testing.T) {
	got := Current()
	if got.Version != "dev" || got.GitSHA != "unknown" || got.BuildTime != "unknown" {
		t.Errorf("unexpected defaults %+v", got)
	}
	if s := got.String(); s != "carstom dev (unknown, built unknown)" {
		t.Errorf("String() = %q", s)
	}
}

func TestStringShortensSHA(t *testing.T) {
	i := Info{Version: "0.3.1", GitSHA: "0123456789abcdef0123", BuildTime: "2026-03-01T12:00:00Z"}
	want := "carstom 0.3.1 (0123456789ab, built 2026-03-01T12:00:00Z)"
	if s := i.String(); s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}
