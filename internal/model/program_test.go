package model

import "testing"

func TestParseProgramType(t *testing.T) {
	tests := []struct {
		in     string
		want   ProgramType
		wantOK bool
	}{
		{"content", ProgramTypeContent, true},
		{" AD ", ProgramTypeAd, true},
		{"News", ProgramTypeNews, true},
		{"bumper", ProgramTypeBumper, true},
		{"movie", "movie", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProgramType(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseProgramType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseProgramStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   ProgramStatus
		wantOK bool
	}{
		{"scheduled", ProgramStatusScheduled, true},
		{"PLAYING", ProgramStatusPlaying, true},
		{"completed", ProgramStatusCompleted, true},
		{"error", ProgramStatusError, true},
		{"paused", "paused", false},
	}
	for _, tt := range tests {
		got, ok := ParseProgramStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseProgramStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestProgram_CloneIsIndependent(t *testing.T) {
	p := &Program{ID: "a", StartTime: "07:00", Duration: 30}
	c := p.Clone()
	c.StartTime = "08:00"
	if p.StartTime != "07:00" {
		t.Errorf("source StartTime = %q, want 07:00", p.StartTime)
	}
}
