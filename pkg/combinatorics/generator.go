// Package combinatorics enumerates Cartesian products, combinations and
// permutations over integer index sets. It has no notion of geometry; the
// point matcher uses it to walk candidate correspondences.
package combinatorics

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/stat/combin"
)

// Mode selects which enumeration Update performs
type Mode int

const (
	// CartesianProduct picks one element from every input set
	CartesianProduct Mode = iota
	// Combination picks unordered K-subsets of input set 0
	Combination
	// Permutation picks ordered K-subsets of input set 0
	Permutation
)

// String returns the name of the mode
func (m Mode) String() string {
	switch m {
	case CartesianProduct:
		return "cartesian-product"
	case Combination:
		return "combination"
	case Permutation:
		return "permutation"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrInvalidSubsetSize is returned when a non-positive subset size is requested.
	ErrInvalidSubsetSize = errors.New("combinatorics: subset size must be greater than zero")
	// ErrNoInputSets is returned by Update when no input set is registered.
	ErrNoInputSets = errors.New("combinatorics: at least one input set is required")
	// ErrEmptyInputSet is returned by Update when input set 0 has no elements.
	ErrEmptyInputSet = errors.New("combinatorics: input set is empty")
	// ErrSetIndexOutOfRange is returned for input/output set lookups past the end.
	ErrSetIndexOutOfRange = errors.New("combinatorics: set index out of range")
	// ErrElementIndexOutOfRange is returned for element lookups past the end of a set.
	ErrElementIndexOutOfRange = errors.New("combinatorics: element index out of range")
	// ErrUnknownMode is returned by Update for a mode outside the defined constants.
	ErrUnknownMode = errors.New("combinatorics: unknown mode")
)

// Generator materializes every output set of the configured mode.
//
// Input sets are copied on the way in and output sets are copied on the way
// out, so callers never share storage with the generator. Outputs are rebuilt
// only when an input or setting changed since the last Update.
type Generator struct {
	log logr.Logger

	mode       Mode
	subsetSize int

	inputSets  [][]int
	outputSets [][]int

	// inputVersion is bumped by every mutator, outputVersion records the
	// inputVersion the outputs were built from.
	inputVersion  uint64
	outputVersion uint64
	lastErr       error
}

// NewGenerator creates a generator in Combination mode with subset size 1
func NewGenerator(logger logr.Logger) *Generator {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Generator{
		log:          logger.WithName("combinatorics"),
		mode:         Combination,
		subsetSize:   1,
		inputVersion: 1,
	}
}

func (g *Generator) modified() {
	g.inputVersion++
}

// SetMode selects the enumeration mode
func (g *Generator) SetMode(mode Mode) {
	if g.mode == mode {
		return
	}
	g.mode = mode
	g.modified()
}

// Mode returns the enumeration mode
func (g *Generator) Mode() Mode { return g.mode }

// SetSubsetSize sets K for Combination and Permutation modes. A value of zero
// or below is rejected and the previous value kept.
func (g *Generator) SetSubsetSize(k int) error {
	if k <= 0 {
		g.log.Info("rejecting subset size, keeping previous value", "requested", k, "current", g.subsetSize)
		return fmt.Errorf("%w: got %d", ErrInvalidSubsetSize, k)
	}
	if g.subsetSize == k {
		return nil
	}
	g.subsetSize = k
	g.modified()
	return nil
}

// SubsetSize returns the configured K
func (g *Generator) SubsetSize() int { return g.subsetSize }

// NumberOfInputSets returns how many input sets are registered
func (g *Generator) NumberOfInputSets() int { return len(g.inputSets) }

// AddInputSet appends a copy of values as a new input set and returns its index
func (g *Generator) AddInputSet(values []int) int {
	g.inputSets = append(g.inputSets, append([]int(nil), values...))
	g.modified()
	return len(g.inputSets) - 1
}

// AddIndexInputSet appends the input set {0, 1, ..., n-1} and returns its index
func (g *Generator) AddIndexInputSet(n int) int {
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	return g.AddInputSet(values)
}

// RemoveInputSet removes input set i; later sets shift down by one
func (g *Generator) RemoveInputSet(i int) error {
	if err := g.checkInputSet(i); err != nil {
		return err
	}
	g.inputSets = append(g.inputSets[:i], g.inputSets[i+1:]...)
	g.modified()
	return nil
}

// RemoveAllInputSets drops every input set
func (g *Generator) RemoveAllInputSets() {
	if len(g.inputSets) == 0 {
		return
	}
	g.inputSets = nil
	g.modified()
}

// ClearInputSet empties input set i but keeps its slot
func (g *Generator) ClearInputSet(i int) error {
	if err := g.checkInputSet(i); err != nil {
		return err
	}
	g.inputSets[i] = g.inputSets[i][:0]
	g.modified()
	return nil
}

// AddInputElement appends value to input set i
func (g *Generator) AddInputElement(i, value int) error {
	if err := g.checkInputSet(i); err != nil {
		return err
	}
	g.inputSets[i] = append(g.inputSets[i], value)
	g.modified()
	return nil
}

// InputElement returns element j of input set i
func (g *Generator) InputElement(i, j int) (int, error) {
	if err := g.checkInputSet(i); err != nil {
		return 0, err
	}
	if j < 0 || j >= len(g.inputSets[i]) {
		return 0, fmt.Errorf("%w: element %d of input set %d (size %d)", ErrElementIndexOutOfRange, j, i, len(g.inputSets[i]))
	}
	return g.inputSets[i][j], nil
}

// InputSet returns a copy of input set i
func (g *Generator) InputSet(i int) ([]int, error) {
	if err := g.checkInputSet(i); err != nil {
		return nil, err
	}
	return append([]int(nil), g.inputSets[i]...), nil
}

func (g *Generator) checkInputSet(i int) error {
	if i < 0 || i >= len(g.inputSets) {
		return fmt.Errorf("%w: input set %d of %d", ErrSetIndexOutOfRange, i, len(g.inputSets))
	}
	return nil
}

// effectiveSubsetSize clamps K to the size of input set 0
func (g *Generator) effectiveSubsetSize() int {
	if len(g.inputSets) == 0 {
		return 0
	}
	n := len(g.inputSets[0])
	if g.subsetSize > n {
		return n
	}
	return g.subsetSize
}

// NumberOfOutputSets returns the closed-form number of sets Update produces,
// without materializing them. Invalid configurations report zero.
func (g *Generator) NumberOfOutputSets() int {
	switch g.mode {
	case CartesianProduct:
		if len(g.inputSets) == 0 {
			return 0
		}
		count := 1
		for _, set := range g.inputSets {
			count *= len(set)
		}
		return count
	case Combination, Permutation:
		k := g.effectiveSubsetSize()
		if k == 0 {
			return 0
		}
		n := len(g.inputSets[0])
		if g.mode == Combination {
			return combin.Binomial(n, k)
		}
		return combin.NumPermutations(n, k)
	default:
		return 0
	}
}

// Update rebuilds the output sets if any input or setting changed since the
// last call. It is a no-op when the outputs are current.
func (g *Generator) Update() error {
	if g.outputVersion == g.inputVersion {
		return g.lastErr
	}

	g.outputSets = nil
	var err error
	switch g.mode {
	case CartesianProduct:
		err = g.generateCartesianProduct()
	case Combination:
		err = g.generateCombinations()
	case Permutation:
		err = g.generatePermutations()
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownMode, g.mode)
	}
	if err != nil {
		g.log.Error(err, "cannot generate output sets", "mode", g.mode)
		g.outputSets = nil
	} else if expected := g.NumberOfOutputSets(); len(g.outputSets) != expected {
		// The enumerator and the closed form disagree: a bug, but the
		// outputs computed so far are still handed out.
		g.log.Error(nil, "output set count does not match closed-form count",
			"mode", g.mode, "produced", len(g.outputSets), "expected", expected)
	}

	g.lastErr = err
	g.outputVersion = g.inputVersion
	return err
}

// OutputSets updates if needed and returns a deep copy of all output sets
func (g *Generator) OutputSets() ([][]int, error) {
	if err := g.Update(); err != nil {
		return nil, err
	}
	out := make([][]int, len(g.outputSets))
	for i, set := range g.outputSets {
		out[i] = append([]int(nil), set...)
	}
	return out, nil
}

// NumberOfGeneratedSets updates if needed and returns how many sets were produced
func (g *Generator) NumberOfGeneratedSets() (int, error) {
	if err := g.Update(); err != nil {
		return 0, err
	}
	return len(g.outputSets), nil
}

// OutputElement updates if needed and returns element j of output set i
func (g *Generator) OutputElement(i, j int) (int, error) {
	if err := g.Update(); err != nil {
		return 0, err
	}
	if i < 0 || i >= len(g.outputSets) {
		return 0, fmt.Errorf("%w: output set %d of %d", ErrSetIndexOutOfRange, i, len(g.outputSets))
	}
	if j < 0 || j >= len(g.outputSets[i]) {
		return 0, fmt.Errorf("%w: element %d of output set %d (size %d)", ErrElementIndexOutOfRange, j, i, len(g.outputSets[i]))
	}
	return g.outputSets[i][j], nil
}

func (g *Generator) generateCartesianProduct() error {
	if len(g.inputSets) == 0 {
		return ErrNoInputSets
	}
	current := make([]int, 0, len(g.inputSets))
	g.cartesianProductRecursive(current, 0)
	return nil
}

func (g *Generator) cartesianProductRecursive(current []int, setIndex int) {
	if setIndex == len(g.inputSets) {
		g.outputSets = append(g.outputSets, append([]int(nil), current...))
		return
	}
	for _, value := range g.inputSets[setIndex] {
		g.cartesianProductRecursive(append(current, value), setIndex+1)
	}
}

// checkSingleSetMode validates the input for Combination/Permutation and
// returns the clamped subset size.
func (g *Generator) checkSingleSetMode() (int, error) {
	if len(g.inputSets) == 0 {
		return 0, ErrNoInputSets
	}
	if len(g.inputSets) > 1 {
		g.log.Info("only the first input set is used", "mode", g.mode, "inputSets", len(g.inputSets))
	}
	n := len(g.inputSets[0])
	if n == 0 {
		return 0, ErrEmptyInputSet
	}
	if g.subsetSize > n {
		g.log.Info("subset size exceeds input set size, clamping", "subsetSize", g.subsetSize, "inputSetSize", n)
	}
	return g.effectiveSubsetSize(), nil
}

func (g *Generator) generateCombinations() error {
	k, err := g.checkSingleSetMode()
	if err != nil {
		return err
	}
	chosen := make([]int, 0, k)
	g.combinationsRecursive(g.inputSets[0], k, 0, chosen)
	return nil
}

// combinationsRecursive decides include/exclude for base[position] and
// emits chosen once it holds k elements. Including first gives
// lexicographic order over chosen positions.
func (g *Generator) combinationsRecursive(base []int, k, position int, chosen []int) {
	if len(chosen) == k {
		g.outputSets = append(g.outputSets, append([]int(nil), chosen...))
		return
	}
	// not enough elements left to fill the subset
	if len(base)-position < k-len(chosen) {
		return
	}
	g.combinationsRecursive(base, k, position+1, append(chosen, base[position]))
	g.combinationsRecursive(base, k, position+1, chosen)
}

func (g *Generator) generatePermutations() error {
	k, err := g.checkSingleSetMode()
	if err != nil {
		return err
	}
	work := append([]int(nil), g.inputSets[0]...)
	g.permutationsRecursive(work, k, 0)
	return nil
}

// permutationsRecursive fixes work[depth] by swapping every remaining
// element into it, recursing, and swapping back so work is restored.
func (g *Generator) permutationsRecursive(work []int, k, depth int) {
	if depth == k {
		g.outputSets = append(g.outputSets, append([]int(nil), work[:k]...))
		return
	}
	for i := depth; i < len(work); i++ {
		work[depth], work[i] = work[i], work[depth]
		g.permutationsRecursive(work, k, depth+1)
		work[depth], work[i] = work[i], work[depth]
	}
}
