// Package shell implements the bash tool (§4.3) and the Shell Sandbox
// that bounds which commands and working directories it may use.
package shell

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Action is what a PermissionRule does when its pattern matches a
// command.
type Action int

const (
	Allow Action = iota
	Deny
)

// sensitiveDirs is the hard-coded denylist no working directory may enter,
// regardless of AllowedWorkingDirs (§4.3).
var sensitiveDirs = []string{"/etc", "/boot", "/sys", "/proc", "/dev", "/root", "/var/run", "/var/log"}

// Rule is one glob pattern and the action to take when a command matches
// it.
type Rule struct {
	Pattern     string
	Action      Action
	Description string
	compiled    glob.Glob
}

func newRule(pattern string, action Action) Rule {
	compiled, err := glob.Compile(pattern)
	if err != nil {
		// An uncompilable pattern never matches; it fails closed rather
		// than panicking on a bad rule supplied at runtime.
		compiled = nil
	}
	return Rule{Pattern: pattern, Action: action, compiled: compiled}
}

// AllowRule builds an Allow rule for pattern.
func AllowRule(pattern string) Rule { return newRule(pattern, Allow) }

// DenyRule builds a Deny rule for pattern.
func DenyRule(pattern string) Rule { return newRule(pattern, Deny) }

// WithDescription attaches a human-readable reason to a rule.
func (r Rule) WithDescription(desc string) Rule {
	r.Description = desc
	return r
}

// Matches reports whether command matches this rule's pattern.
func (r Rule) Matches(command string) bool {
	if r.compiled == nil {
		return false
	}
	return r.compiled.Match(command)
}

// Sandbox is the Shell Sandbox (§4.3): a first-match-wins list of command
// rules, a default action for commands no rule matches, and a working
// directory allowlist layered under a hard-coded sensitive-directory
// denylist.
type Sandbox struct {
	rules              []Rule
	defaultAction      Action
	allowedWorkingDirs []string
	denySensitiveDirs  bool
}

// New builds a Sandbox from an explicit rule list. Deny is the safe
// default action when no rule matches.
func New(rules []Rule) *Sandbox {
	return &Sandbox{
		rules:              rules,
		defaultAction:      Deny,
		allowedWorkingDirs: []string{"/tmp", "/home", "/workspace", "/project"},
		denySensitiveDirs:  true,
	}
}

// WithDefaultAction overrides the default action.
func (s *Sandbox) WithDefaultAction(a Action) *Sandbox {
	s.defaultAction = a
	return s
}

// WithAllowedWorkingDirs overrides the working-directory allowlist.
func (s *Sandbox) WithAllowedWorkingDirs(dirs []string) *Sandbox {
	s.allowedWorkingDirs = dirs
	return s
}

// WithSensitiveDirProtection toggles the hard-coded sensitive-directory
// denylist.
func (s *Sandbox) WithSensitiveDirProtection(enabled bool) *Sandbox {
	s.denySensitiveDirs = enabled
	return s
}

// AddRule appends a rule, evaluated after every existing rule.
func (s *Sandbox) AddRule(r Rule) { s.rules = append(s.rules, r) }

// Rules returns the sandbox's current rule list.
func (s *Sandbox) Rules() []Rule { return s.rules }

// AddAllowedWorkingDir appends a directory to the allowlist.
func (s *Sandbox) AddAllowedWorkingDir(dir string) { s.allowedWorkingDirs = append(s.allowedWorkingDirs, dir) }

// AllowedWorkingDirs returns the current working-directory allowlist.
func (s *Sandbox) AllowedWorkingDirs() []string { return s.allowedWorkingDirs }

// CheckCommand evaluates command against the rule list, first match wins,
// falling back to the default action when nothing matches.
func (s *Sandbox) CheckCommand(command string) error {
	for _, rule := range s.rules {
		if rule.Matches(command) {
			if rule.Action == Deny {
				return fmt.Errorf("shell: command %q denied by rule %q", command, rule.Pattern)
			}
			return nil
		}
	}
	if s.defaultAction == Deny {
		return fmt.Errorf("shell: command %q denied by default policy", command)
	}
	return nil
}

// IsCommandAllowed is the boolean form of CheckCommand.
func (s *Sandbox) IsCommandAllowed(command string) bool { return s.CheckCommand(command) == nil }

// CheckWorkingDirectory enforces the allowlist and the sensitive-directory
// denylist. The denylist always wins, even over an allowlist entry that
// would otherwise match.
func (s *Sandbox) CheckWorkingDirectory(dir string) error {
	clean := filepath.Clean(dir)
	if s.denySensitiveDirs {
		for _, sensitive := range sensitiveDirs {
			if clean == sensitive || strings.HasPrefix(clean, sensitive+string(filepath.Separator)) {
				return fmt.Errorf("shell: working directory %q is in a protected location", dir)
			}
		}
	}
	if len(s.allowedWorkingDirs) == 0 {
		return nil
	}
	for _, allowed := range s.allowedWorkingDirs {
		prefix := strings.TrimSuffix(allowed, string(filepath.Separator)) + string(filepath.Separator)
		if clean == allowed || strings.HasPrefix(clean, prefix) {
			return nil
		}
	}
	return fmt.Errorf("shell: working directory %q is not in an allowed location", dir)
}

// OnlyAllow builds a Sandbox that allows exactly the given commands
// (as-is, not patterns) and denies everything else.
func OnlyAllow(commands []string) *Sandbox {
	s := New(nil)
	for _, c := range commands {
		s.AddRule(AllowRule(c))
	}
	s.AddRule(DenyRule("*"))
	return s
}

// ReadOnly builds a Sandbox allowing common read-only inspection commands
// and denying everything else.
func ReadOnly() *Sandbox {
	s := New(nil)
	for _, pattern := range []string{"ls*", "cat*", "head*", "tail*", "grep*", "find*", "wc*", "pwd"} {
		s.AddRule(AllowRule(pattern))
	}
	s.AddRule(DenyRule("*"))
	return s
}

// Minimal builds a Sandbox allowing only the given command prefixes
// (each matched as "{cmd}*") and denying everything else.
func Minimal(commands []string) *Sandbox {
	s := New(nil)
	for _, c := range commands {
		s.AddRule(AllowRule(c + "*"))
	}
	s.AddRule(DenyRule("*"))
	return s
}

// Default builds the Sandbox's concrete default policy (§C.4): a broad
// set of inspection/build/vcs commands allowed, a short list of
// destructive patterns explicitly denied, Deny as the default action, and
// sensitive-directory protection on.
func Default() *Sandbox {
	s := New([]Rule{
		AllowRule("echo*"),
		AllowRule("ls*"),
		AllowRule("cat*"),
		AllowRule("pwd"),
		AllowRule("which*"),
		AllowRule("git status"),
		AllowRule("git add*"),
		AllowRule("git commit*"),
		AllowRule("git log*"),
		AllowRule("git diff*"),
		AllowRule("git show*"),
		AllowRule("cargo check"),
		AllowRule("cargo test"),
		AllowRule("cargo build*"),
		AllowRule("npm test"),
		AllowRule("npm install"),
		AllowRule("npm run*"),
		AllowRule("python*"),
		AllowRule("make*"),
		AllowRule("find*"),
		AllowRule("grep*"),
		AllowRule("head*"),
		AllowRule("tail*"),
		AllowRule("wc*"),
		AllowRule("sort*"),
		AllowRule("uniq*"),
		DenyRule("rm -rf /*"),
		DenyRule("rm -rf /"),
		DenyRule("chmod 777 /*"),
		DenyRule("chmod 777 /"),
		DenyRule("sudo *"),
		DenyRule("su *"),
		DenyRule("passwd*"),
	})
	return s.WithDefaultAction(Deny).WithSensitiveDirProtection(true)
}
