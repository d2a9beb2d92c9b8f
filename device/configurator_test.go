package device

import (
	"errors"
	"testing"

	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/pkg"
)

func TestConfigurator_CommitOncePerEnumeration(t *testing.T) {
	tests := []struct {
		name        string
		polls       []pollResult
		wantCommits int
		wantConfig  bool
	}{
		{
			name:        "single enumeration",
			polls:       []pollResult{resetPoll(), configuredPoll(), configuredPoll(), configuredPoll()},
			wantCommits: 1,
			wantConfig:  true,
		},
		{
			name: "re-enumeration after reset",
			polls: []pollResult{
				configuredPoll(), configuredPoll(),
				resetPoll(),
				configuredPoll(), configuredPoll(),
			},
			wantCommits: 2,
			wantConfig:  true,
		},
		{
			name:        "idle polls change nothing",
			polls:       []pollResult{configuredPoll(), {}, {}, {activity: false, state: hal.StateDefault}},
			wantCommits: 1,
			wantConfig:  true,
		},
		{
			name:        "never configured",
			polls:       []pollResult{resetPoll(), {activity: true, state: hal.StateAddress}},
			wantCommits: 0,
			wantConfig:  false,
		},
		{
			name:        "ends unconfigured",
			polls:       []pollResult{configuredPoll(), resetPoll()},
			wantCommits: 1,
			wantConfig:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &mockBus{polls: tt.polls}
			tr := NewTransport(bus, &mockTimer{})
			c := NewConfigurator(tr)

			for range tt.polls {
				activity, err := tr.Poll()
				if err != nil {
					t.Fatal(err)
				}
				if err := c.Update(activity, tr.State()); err != nil {
					t.Fatalf("Update() error = %v", err)
				}
			}
			if bus.configures != tt.wantCommits {
				t.Errorf("Configure called %d times, want %d", bus.configures, tt.wantCommits)
			}
			if int(c.Commits()) != tt.wantCommits {
				t.Errorf("Commits() = %d, want %d", c.Commits(), tt.wantCommits)
			}
			if c.Configured() != tt.wantConfig {
				t.Errorf("Configured() = %v, want %v", c.Configured(), tt.wantConfig)
			}
		})
	}
}

func TestConfigurator_NoActivityNoTransition(t *testing.T) {
	c := NewConfigurator(&mockBus{})
	if err := c.Update(false, Configured); err != nil {
		t.Fatal(err)
	}
	if c.Configured() {
		t.Error("Configured() = true without activity")
	}
}

func TestConfigurator_CommitFailure(t *testing.T) {
	bus := &mockBus{configErr: pkg.ErrProtocol}
	c := NewConfigurator(bus)

	err := c.Update(true, Configured)
	if !errors.Is(err, pkg.ErrProtocol) {
		t.Fatalf("Update() error = %v, want ErrProtocol", err)
	}
	if c.Configured() {
		t.Error("Configured() = true after failed commit")
	}

	bus.configErr = nil
	if err := c.Update(true, Configured); err != nil {
		t.Fatalf("retry Update() error = %v", err)
	}
	if !c.Configured() || c.Commits() != 1 {
		t.Errorf("after retry Configured() = %v Commits() = %d", c.Configured(), c.Commits())
	}
}

func TestConfigurator_AlreadyConfigured(t *testing.T) {
	bus := &mockBus{committed: true}
	c := NewConfigurator(bus)

	if err := c.Update(true, Configured); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !c.Configured() {
		t.Error("Configured() = false after ErrAlreadyConfigured")
	}
	if c.Commits() != 0 {
		t.Errorf("Commits() = %d, want 0", c.Commits())
	}
}

func TestConfigState_String(t *testing.T) {
	tests := []struct {
		state ConfigState
		want  string
	}{
		{Unconfigured, "Unconfigured"},
		{Configured, "Configured"},
		{ConfigState(7), "Unknown ConfigState (7)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConfigState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
