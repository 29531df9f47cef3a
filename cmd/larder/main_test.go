package main

import "testing"

func TestParseFlags(t *testing.T) {
	opts, fs, err := parseFlags([]string{"-c", "larder.toml", "--addr", ":9000", "--offline"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.configPath != "larder.toml" || opts.addr != ":9000" || !opts.offline {
		t.Errorf("opts = %+v", opts)
	}
	if !fs.Changed("offline") || fs.Changed("db") {
		t.Error("Changed reports wrong flags")
	}
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	if _, _, err := parseFlags([]string{"--verbose"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
