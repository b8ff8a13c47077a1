package scope

import "testing"

func TestKeySanitizes(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		agentID string
		want    string
	}{
		{"plain", "alice", "", "alice"},
		{"slash", "user/1", "", "user_1"},
		{"email", "bob@example.com", "", "bob_example_com"},
		{"with agent", "alice", "coder", "alice_coder"},
		{"agent sanitized", "alice", "gpt:4", "alice_gpt_4"},
		{"colon user", "org:7", "run 1", "org_7_run_1"},
		{"dashes kept", "a-b", "c-d", "a-b_c-d"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.userID, tt.agentID); got != tt.want {
				t.Errorf("Key(%q, %q) = %q, want %q", tt.userID, tt.agentID, got, tt.want)
			}
		})
	}
}

func TestKeyDeterministic(t *testing.T) {
	first := Key("user/1", "agent#2")
	second := Key("user/1", "agent#2")
	if first != second {
		t.Errorf("Key not deterministic: %q != %q", first, second)
	}
	// Idempotent: sanitized output passes through unchanged.
	if again := Key(first, ""); again != first {
		t.Errorf("Key not idempotent: Key(%q) = %q", first, again)
	}
}

func TestGroup(t *testing.T) {
	userOnly := Group("alice", "")
	if len(userOnly) != 1 {
		t.Fatalf("Group without agent: got %d keys, want 1", len(userOnly))
	}
	if userOnly[0] != "alice" {
		t.Errorf("Group[0] = %q, want alice", userOnly[0])
	}

	both := Group("alice", "coder")
	if len(both) != 2 {
		t.Fatalf("Group with agent: got %d keys, want 2", len(both))
	}
	if both[0] != Key("alice", "") {
		t.Errorf("Group[0] = %q, want user-wide key %q", both[0], Key("alice", ""))
	}
	if both[1] != "alice_coder" {
		t.Errorf("Group[1] = %q, want alice_coder", both[1])
	}
}
