package evaluator

import (
	"context"
	"fmt"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/kappa"
	"github.com/periodic-system/evaluator/pkg/loader"
	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/negex"
	"github.com/periodic-system/evaluator/pkg/syseval"
)

// systemResolver implements syseval.CompoundResolver over a plain alias ->
// element-id-set map built while loading a system's compounds.
type systemResolver map[string]map[string]bool

func (r systemResolver) ElementIDs(alias string) (map[string]bool, bool) {
	ids, ok := r[alias]
	return ids, ok
}

// evaluateSystem loads a system document, evaluates each referenced
// compound (memoized in cache), validates links/waivers/endorsement, and
// canonicalizes the system graph for its kappa hash. When e.KappaTool is
// set, canonicalization runs through it (the external WASI tool, with an
// honest in-process fallback) instead of calling kappa.Canonicalize
// directly.
func (e *env) evaluateSystem(ldr *loader.Loader, cache map[string]cachedCompound, path string, collector *errorir.Collector) (*model.System, kappa.Result, error) {
	sys, err := ldr.LoadSystem(path)
	if err != nil {
		return nil, kappa.Result{}, err
	}

	resolver := systemResolver{}
	for _, c := range sys.Compounds {
		_, view, err := e.evaluateCompoundCached(ldr, cache, c.Path, collector)
		if err != nil {
			return nil, kappa.Result{}, err
		}
		resolver[c.As] = view.ElementIDs
	}

	syseval.Evaluate(sys, resolver, e.spelEndorsement, collector)

	var kr kappa.Result
	if e.KappaTool != nil {
		kr, err = e.KappaTool.Canonicalize(context.Background(), sys)
	} else {
		kr, err = kappa.Canonicalize(sys)
	}
	if err != nil {
		return nil, kappa.Result{}, err
	}
	if kr.FallbackWarning {
		collector.Add(errorir.Violation{
			Code:      errorir.CodeKappaExternalFallback,
			Kind:      "system",
			SystemID:  sys.ID,
			Severity:  errorir.SeverityWarn,
			Message:   fmt.Sprintf("system %q: external kappa tool failed; fell back to the in-process canonicalizer", sys.ID),
			PolicyURI: e.PolicyURI,
			Profile:   e.Profile.Name,
		})
	}
	return sys, kr, nil
}

// runNegativeCompoundCase evaluates one compound-level negative example in
// full isolation: its own Loader and its own Collector, so the case's
// expected failures never pollute the main run's trace.
func (e *env) runNegativeCompoundCase(baseDir, path string) ([]string, error) {
	caseCollector := errorir.NewCollector()
	caseLdr := loader.New(baseDir, caseCollector)
	if _, _, err := e.evaluateCompound(caseLdr, path, caseCollector); err != nil {
		return nil, err
	}
	caseCollector.Finalize()
	var fired []string
	for _, v := range caseCollector.All() {
		if v.RuleID != "" {
			fired = append(fired, v.RuleID)
		}
	}
	return fired, nil
}

// runNegativeSystemCase is the system-level counterpart of
// runNegativeCompoundCase. It always canonicalizes in-process: a negative
// example tests rule firing, not the external kappa tool.
func (e *env) runNegativeSystemCase(baseDir, path string) ([]string, error) {
	caseCollector := errorir.NewCollector()
	caseLdr := loader.New(baseDir, caseCollector)
	caseCache := map[string]cachedCompound{}
	caseEnv := *e
	caseEnv.KappaTool = nil
	if _, _, err := caseEnv.evaluateSystem(caseLdr, caseCache, path, caseCollector); err != nil {
		return nil, err
	}
	caseCollector.Finalize()
	var fired []string
	for _, v := range caseCollector.All() {
		if v.RuleID != "" {
			fired = append(fired, v.RuleID)
		}
	}
	return fired, nil
}

// runNegativeExamples implements spec.md §4.9 over both compound- and
// system-level negative-example corpora, recording each case's outcome
// into the main collector via negex.RunCase.
func (e *env) runNegativeExamples(baseDir string, compoundCases []model.NegativeExample, systemCases []model.SystemNegativeExample, strict bool, collector *errorir.Collector) error {
	for _, c := range negex.FromCompoundExamples(compoundCases) {
		fired, err := e.runNegativeCompoundCase(baseDir, c.Path)
		if err != nil {
			return err
		}
		negex.RunCase(c.ID, c.ExpectErrors, c.ExpectWarnings, fired, strict, collector)
	}
	for _, c := range negex.FromSystemExamples(systemCases) {
		fired, err := e.runNegativeSystemCase(baseDir, c.Path)
		if err != nil {
			return err
		}
		negex.RunCase(c.ID, c.ExpectErrors, c.ExpectWarnings, fired, strict, collector)
	}
	return nil
}
