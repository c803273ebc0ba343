package shell

import "testing"

func TestDefaultAllowsCommonCommands(t *testing.T) {
	s := Default()
	for _, cmd := range []string{"echo hi", "ls -la", "git status", "git log --oneline", "cargo test", "npm install"} {
		if err := s.CheckCommand(cmd); err != nil {
			t.Errorf("expected %q to be allowed, got %v", cmd, err)
		}
	}
}

func TestDefaultDeniesDangerousCommands(t *testing.T) {
	s := Default()
	for _, cmd := range []string{"rm -rf /", "rm -rf /*", "chmod 777 /", "sudo rm -rf /", "su root", "passwd root"} {
		if err := s.CheckCommand(cmd); err == nil {
			t.Errorf("expected %q to be denied", cmd)
		}
	}
}

func TestDefaultDeniesUnlistedCommand(t *testing.T) {
	s := Default()
	if err := s.CheckCommand("curl http://example.com"); err == nil {
		t.Error("expected unlisted command to be denied by default policy")
	}
}

func TestOnlyAllow(t *testing.T) {
	s := OnlyAllow([]string{"ls", "pwd"})
	if err := s.CheckCommand("ls"); err != nil {
		t.Errorf("expected ls to be allowed: %v", err)
	}
	if err := s.CheckCommand("rm file"); err == nil {
		t.Error("expected rm to be denied")
	}
}

func TestReadOnly(t *testing.T) {
	s := ReadOnly()
	if err := s.CheckCommand("cat file.txt"); err != nil {
		t.Errorf("expected cat to be allowed: %v", err)
	}
	if err := s.CheckCommand("rm file.txt"); err == nil {
		t.Error("expected rm to be denied")
	}
}

func TestMinimal(t *testing.T) {
	s := Minimal([]string{"git"})
	if err := s.CheckCommand("git status"); err != nil {
		t.Errorf("expected git status to be allowed: %v", err)
	}
	if err := s.CheckCommand("npm install"); err == nil {
		t.Error("expected npm install to be denied")
	}
}

func TestFirstMatchWins(t *testing.T) {
	s := New([]Rule{
		DenyRule("git push*"),
		AllowRule("git*"),
	})
	if err := s.CheckCommand("git push origin main"); err == nil {
		t.Error("expected git push to be denied by the earlier, more specific rule")
	}
	if err := s.CheckCommand("git status"); err != nil {
		t.Errorf("expected git status to be allowed: %v", err)
	}
}

func TestWorkingDirectoryAllowlist(t *testing.T) {
	s := Default().WithAllowedWorkingDirs([]string{"/workspace"})
	if err := s.CheckWorkingDirectory("/workspace/project"); err != nil {
		t.Errorf("expected /workspace/project to be allowed: %v", err)
	}
	if err := s.CheckWorkingDirectory("/opt/other"); err == nil {
		t.Error("expected /opt/other to be denied")
	}
}

func TestSensitiveDirDenylistOverridesAllowlist(t *testing.T) {
	s := Default().WithAllowedWorkingDirs([]string{"/"})
	for _, dir := range []string{"/etc", "/etc/passwd", "/root", "/var/log"} {
		if err := s.CheckWorkingDirectory(dir); err == nil {
			t.Errorf("expected %q to be denied despite a permissive allowlist", dir)
		}
	}
}

func TestSensitiveDirProtectionCanBeDisabled(t *testing.T) {
	s := Default().WithAllowedWorkingDirs([]string{"/"}).WithSensitiveDirProtection(false)
	if err := s.CheckWorkingDirectory("/etc"); err != nil {
		t.Errorf("expected /etc to be allowed once protection is disabled: %v", err)
	}
}

func TestRuleManagement(t *testing.T) {
	s := New(nil)
	s.AddRule(AllowRule("ls*").WithDescription("listing is safe"))
	if len(s.Rules()) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(s.Rules()))
	}
	s.AddAllowedWorkingDir("/srv")
	found := false
	for _, d := range s.AllowedWorkingDirs() {
		if d == "/srv" {
			found = true
		}
	}
	if !found {
		t.Error("expected /srv to be in the allowlist")
	}
}
