package depend

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sassoftware/go-rpmutils"

	perrors "pkgforge/internal/errors"
)

// Op is the comparison operator of a dependency constraint.
type Op string

const (
	OpAny Op = "" // bare name, any version satisfies
	OpEQ  Op = "="
	OpLT  Op = "<"
	OpGT  Op = ">"
	OpLE  Op = "<="
	OpGE  Op = ">="
)

// Requirement is a single dependency constraint on a package name.
type Requirement struct {
	Name    string
	Op      Op
	Version string
}

func (r Requirement) String() string {
	if r.Op == OpAny {
		return r.Name
	}
	return fmt.Sprintf("%s %s %s", r.Name, r.Op, r.Version)
}

// Parse parses a constraint string: either "name" or "name op version" with
// op one of =, <, >, <=, >=. The three parts are whitespace separated.
func Parse(s string) (Requirement, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return Requirement{Name: fields[0]}, nil
	case 3:
		op := Op(fields[1])
		switch op {
		case OpEQ, OpLT, OpGT, OpLE, OpGE:
			return Requirement{Name: fields[0], Op: op, Version: fields[2]}, nil
		default:
			return Requirement{}, fmt.Errorf("invalid requirement %q: unknown operator %q", s, fields[1])
		}
	default:
		return Requirement{}, fmt.Errorf("invalid requirement %q: want \"name\" or \"name op version\"", s)
	}
}

// SatisfiedBy reports whether a provided version satisfies the constraint.
// Versions compare under RPM ordering rules, so "1.10" sorts after "1.9".
func (r Requirement) SatisfiedBy(version string) bool {
	if r.Op == OpAny {
		return true
	}
	cmp := rpmutils.Vercmp(version, r.Version)
	switch r.Op {
	case OpEQ:
		return cmp == 0
	case OpLT:
		return cmp < 0
	case OpGT:
		return cmp > 0
	case OpLE:
		return cmp <= 0
	case OpGE:
		return cmp >= 0
	}
	return false
}

// Environment maps package names to the version a candidate install
// environment provides. An empty version means the package is present but
// its version is unknown; that satisfies only unversioned constraints.
type Environment map[string]string

// LoadEnvironment reads a provides file: one "name version" pair per line,
// version optional. Blank lines and # comments are ignored.
func LoadEnvironment(path string) (Environment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrDependency, "", "reading environment: %w", err)
	}
	defer f.Close()

	env := Environment{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			env[fields[0]] = ""
		case 2:
			env[fields[0]] = fields[1]
		default:
			return nil, perrors.Newf(perrors.ErrDependency, "",
				"%s:%d: want \"name version\", got %q", path, lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, perrors.Newf(perrors.ErrDependency, "", "reading environment: %w", err)
	}
	return env, nil
}

// Unmet describes a constraint the environment fails to satisfy.
type Unmet struct {
	Requirement Requirement
	Provided    string
	Missing     bool
}

func (u Unmet) String() string {
	if u.Missing {
		return fmt.Sprintf("%s: not provided", u.Requirement)
	}
	if u.Provided == "" {
		return fmt.Sprintf("%s: provided without a version", u.Requirement)
	}
	return fmt.Sprintf("%s: provides %s", u.Requirement, u.Provided)
}

// Check returns the subset of reqs the environment does not satisfy. An
// empty result means every constraint is met.
func Check(env Environment, reqs []Requirement) []Unmet {
	var unmet []Unmet
	for _, req := range reqs {
		provided, ok := env[req.Name]
		if !ok {
			unmet = append(unmet, Unmet{Requirement: req, Missing: true})
			continue
		}
		if provided == "" && req.Op != OpAny {
			unmet = append(unmet, Unmet{Requirement: req})
			continue
		}
		if !req.SatisfiedBy(provided) {
			unmet = append(unmet, Unmet{Requirement: req, Provided: provided})
		}
	}
	return unmet
}
