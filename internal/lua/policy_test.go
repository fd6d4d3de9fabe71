package lua

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPolicy_Select(t *testing.T) {
	tests := []struct {
		name   string
		script string
		min    float64
		max    float64
		want   float64
	}{
		{"lower quarter", "function select_target(min, max) return min + (max - min) * 0.25 end", 20, 28, 22},
		{"constant", "function select_target(min, max) return 23.5 end", 0, 100, 23.5},
		{
			"uses log module",
			`local log = require("log")
			 function select_target(min, max)
			   log.debug("selecting", {min = min, max = max})
			   return max
			 end`,
			18, 26, 26,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.script)
			if err != nil {
				t.Fatalf("NewPolicy() error = %v", err)
			}
			defer p.Close()

			got, err := p.Select(context.Background(), tt.min, tt.max)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Select() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_Errors(t *testing.T) {
	if _, err := NewPolicy("x = 1"); err == nil || !strings.Contains(err.Error(), SelectFunction) {
		t.Errorf("NewPolicy() without function error = %v", err)
	}
	if _, err := NewPolicy("function ("); err == nil {
		t.Error("NewPolicy() with syntax error should fail")
	}

	tests := []struct {
		name   string
		script string
	}{
		{"returns string", `function select_target(min, max) return "hot" end`},
		{"raises", `function select_target(min, max) error("boom") end`},
		{"returns nan", `function select_target(min, max) return 0/0 end`},
		{"runs forever", `function select_target(min, max) while true do end end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.script)
			if err != nil {
				t.Fatalf("NewPolicy() error = %v", err)
			}
			defer p.Close()
			if _, err := p.Select(context.Background(), 20, 26); err == nil {
				t.Error("Select() error = nil, want error")
			}
		})
	}
}

func TestPolicy_LoadFileAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.lua")
	if err := os.WriteFile(path, []byte("function select_target(min, max) return min end"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	if got, _ := p.Select(context.Background(), 19, 25); got != 19 {
		t.Errorf("Select() = %v, want 19", got)
	}

	p.Close()
	p.Close()
	if _, err := p.Select(context.Background(), 19, 25); err != ErrPolicyClosed {
		t.Errorf("Select() after Close error = %v, want ErrPolicyClosed", err)
	}
}

func TestLoadPolicy_SampleScript(t *testing.T) {
	p, err := LoadPolicy(filepath.Join("..", "..", "scripts", "policy.lua"))
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	defer p.Close()

	got, err := p.Select(context.Background(), 20, 30)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != 22.5 {
		t.Errorf("Select(20, 30) = %v, want 22.5", got)
	}
}
