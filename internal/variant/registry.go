package variant

import (
	"errors"
	"fmt"
)

// Flavor is the product a caller explicitly asserted. FlavorNone means the
// caller made no claim.
type Flavor string

const (
	FlavorNone Flavor = ""
	FlavorDSE  Flavor = "dse"
	FlavorHCD  Flavor = "hcd"
)

// ParseFlavor accepts "", "dse" and "hcd".
func ParseFlavor(raw string) (Flavor, error) {
	switch f := Flavor(raw); f {
	case FlavorNone, FlavorDSE, FlavorHCD:
		return f, nil
	default:
		return FlavorNone, fmt.Errorf("unknown flavor %q", raw)
	}
}

// Options are the already-validated caller options variants consult.
type Options struct {
	Flavor Flavor `yaml:"flavor,omitempty"`
	// DSE download credentials. The password is never persisted.
	Username        string `yaml:"dse_username,omitempty"`
	Password        string `yaml:"-"`
	CredentialsFile string `yaml:"dse_credentials,omitempty"`
	// OpsCenter is the companion dashboard version to install, if any.
	OpsCenter    string `yaml:"opscenter,omitempty"`
	DataDirs     int    `yaml:"data_dirs,omitempty"`
	EnableAOSS   bool   `yaml:"enable_aoss,omitempty"`
	ShowProgress bool   `yaml:"-"`
}

// Asserts reports whether the caller asserted f.
func (o Options) Asserts(f Flavor) bool {
	return o.Flavor == f
}

// DataDirCount returns the number of per-node data directories, at least one.
func (o Options) DataDirCount() int {
	if o.DataDirs < 1 {
		return 1
	}
	return o.DataDirs
}

// Outcome classifies a detector result.
type Outcome int

const (
	NotMatched Outcome = iota
	Matched
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Conflict:
		return "conflict"
	default:
		return "not matched"
	}
}

// Detection is the result of running one detector.
type Detection struct {
	Outcome Outcome
	Variant ClusterVariant
	// Reason explains a Conflict.
	Reason string
}

// Match reports that v owns the install directory.
func Match(v ClusterVariant) Detection {
	return Detection{Outcome: Matched, Variant: v}
}

// NoMatch reports that the detector does not recognize the directory.
func NoMatch() Detection {
	return Detection{Outcome: NotMatched}
}

// Conflicting reports that directory evidence and options disagree.
func Conflicting(format string, args ...any) Detection {
	return Detection{Outcome: Conflict, Reason: fmt.Sprintf(format, args...)}
}

// Detector inspects an install directory and the caller's options.
type Detector func(dir *InstallDir, opts Options) Detection

// Registry is an ordered set of detectors plus the variants they produce.
type Registry struct {
	detectors []Detector
	named     map[string]ClusterVariant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{named: make(map[string]ClusterVariant)}
}

// Register appends v and its detector. Detection order is registration order.
func (r *Registry) Register(v ClusterVariant, detect Detector) {
	r.detectors = append(r.detectors, detect)
	r.named[v.Name()] = v
}

// Named returns the variant registered under name.
func (r *Registry) Named(name string) (ClusterVariant, bool) {
	v, ok := r.named[name]
	return v, ok
}

// Resolve runs every detector in registration order. Any Conflict fails the
// whole resolution with a ConfigurationError so a contradicted assertion is
// never silently resolved to a different variant. Otherwise the first match
// wins; ok is false when nothing matched.
func (r *Registry) Resolve(dir *InstallDir, opts Options) (ClusterVariant, bool, error) {
	if dir == nil {
		return nil, false, &ConfigurationError{Reason: "undefined installation directory"}
	}
	var (
		found     ClusterVariant
		conflicts []error
	)
	for _, detect := range r.detectors {
		d := detect(dir, opts)
		switch d.Outcome {
		case Conflict:
			conflicts = append(conflicts, &ConfigurationError{Path: dir.Path(), Reason: d.Reason})
		case Matched:
			if found == nil {
				found = d.Variant
			}
		}
	}
	switch len(conflicts) {
	case 0:
		return found, found != nil, nil
	case 1:
		return nil, false, conflicts[0]
	default:
		return nil, false, errors.Join(conflicts...)
	}
}

// DetectLauncher builds the detector for a product identified by
// bin/<launcher> and asserted through flavor. The assertion must be backed by
// a bin directory, and a present launcher must be asserted; the "./"
// directory skips both checks.
func DetectLauncher(v ClusterVariant, flavor Flavor, launcher string) Detector {
	return func(dir *InstallDir, opts Options) Detection {
		if opts.Asserts(flavor) {
			if !dir.Relaxed() && !dir.HasBin() {
				return Conflicting("installation directory does not contain a bin directory")
			}
			return Match(v)
		}
		if !dir.Has(BinDir, launcher) {
			return NoMatch()
		}
		switch {
		case dir.Relaxed():
			return Match(v)
		case opts.Flavor != FlavorNone:
			return Conflicting("installation directory is %s but options asserted %s", flavor, opts.Flavor)
		default:
			return Conflicting("installation directory is %s but options did not specify --%s", flavor, flavor)
		}
	}
}
