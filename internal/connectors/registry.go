package connectors

import (
	"fmt"
	"sync"

	"github.com/jmylchreest/jobsift/internal/config"
)

// Constructor builds a connector from its source config, failing fast on a
// config that cannot produce valid requests.
type Constructor func(name string, src config.SourceDef, deps Deps) (Connector, error)

// Registry maps source names to connector constructors and builds the
// enabled connector set for a run.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	deps         Deps
}

// NewRegistry creates a registry pre-loaded with the built-in platforms.
// iCIMS ships a constructor but is not registered by default; callers that
// need it register it under their source name.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		constructors: make(map[string]Constructor),
		deps:         deps.withDefaults(),
	}
	r.Register("greenhouse", NewGreenhouse)
	r.Register("lever", NewLever)
	r.Register("ashby", NewAshby)
	r.Register("smartrecruiters", NewSmartRecruiters)
	r.Register("workable", NewWorkable)
	r.Register("recruitee", NewRecruitee)
	r.Register("bamboohr", NewBambooHR)
	r.Register("jobvite", NewJobvite)
	return r
}

// Register adds or replaces the constructor for a source name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Set holds built connectors partitioned by source family.
type Set struct {
	ATS         []Connector
	Aggregators []Connector
	Underground []Connector
}

// All returns every connector in the set, ATS first.
func (s *Set) All() []Connector {
	all := make([]Connector, 0, len(s.ATS)+len(s.Aggregators)+len(s.Underground))
	all = append(all, s.ATS...)
	all = append(all, s.Aggregators...)
	all = append(all, s.Underground...)
	return all
}

// Build constructs every enabled connector from the rules. Sources of type
// search with no dedicated constructor get the generic search connector;
// they are skipped with a warning when no search API keys are configured,
// since search is an optional capability. Any other construction failure is
// a config error and aborts the build.
func (r *Registry) Build(rules *config.Rules) (*Set, error) {
	set := &Set{}
	for _, name := range rules.EnabledSources("") {
		src := rules.Sources[name]

		if src.Type == "search" && !r.searchAvailable() {
			r.deps.Logger.Warn("skipping search source: no search API keys configured", "source", name)
			continue
		}

		ctor := r.lookup(name, src)
		if ctor == nil {
			return nil, fmt.Errorf("no connector registered for source %s", name)
		}
		conn, err := ctor(name, src, r.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build connector for %s: %w", name, err)
		}

		switch src.Family {
		case "ats":
			set.ATS = append(set.ATS, conn)
		case "aggregator":
			set.Aggregators = append(set.Aggregators, conn)
		case "underground":
			set.Underground = append(set.Underground, conn)
		default:
			return nil, fmt.Errorf("source %s has unknown family %q", name, src.Family)
		}
	}
	return set, nil
}

func (r *Registry) lookup(name string, src config.SourceDef) Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ctor, ok := r.constructors[name]; ok {
		return ctor
	}
	if src.Type == "search" {
		return NewSearch
	}
	return nil
}

func (r *Registry) searchAvailable() bool {
	return r.deps.Searcher != nil && r.deps.Searcher.Enabled()
}
