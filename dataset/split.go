package dataset

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/BaSui01/distiset/types"
)

// Split names produced by TrainTestSplit.
const (
	TrainSplit = "train"
	TestSplit  = "test"
)

// DefaultSeed is used when no seed is given, so repeated splits of the same
// table reproduce the same partition.
const DefaultSeed uint64 = 42

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitOptions)

type splitOptions struct {
	seed    uint64
	shuffle bool
}

// WithSeed sets the permutation seed.
func WithSeed(seed uint64) SplitOption {
	return func(o *splitOptions) { o.seed = seed }
}

// WithShuffle toggles shuffling. Without it the first rows go to train and
// the rest to test.
func WithShuffle(shuffle bool) SplitOption {
	return func(o *splitOptions) { o.shuffle = shuffle }
}

// TrainTestSplit partitions the rows of t into a "train" table holding
// floor(trainSize*n) rows and a "test" table holding the rest. trainSize
// must be in (0, 1).
func TrainTestSplit(t *Table, trainSize float64, opts ...SplitOption) (*SplitGroup, error) {
	if math.IsNaN(trainSize) || trainSize <= 0 || trainSize >= 1 {
		return nil, types.Errorf(types.ErrInvalidArgument, "train size must be in (0, 1), got %v", trainSize)
	}

	options := &splitOptions{seed: DefaultSeed, shuffle: true}
	for _, opt := range opts {
		opt(options)
	}

	n := t.NumRows()
	// 1e-9 absorbs products like 0.29*100 = 28.999999999999996.
	nTrain := int(math.Floor(trainSize*float64(n) + 1e-9))

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if options.shuffle {
		rng := rand.New(rand.NewPCG(options.seed, options.seed^0x9e3779b97f4a7c15))
		indices = rng.Perm(n)
	}

	train, err := t.Select(indices[:nTrain])
	if err != nil {
		return nil, err
	}
	test, err := t.Select(indices[nTrain:])
	if err != nil {
		return nil, err
	}

	return NewSplitGroup().Set(TrainSplit, train).Set(TestSplit, test), nil
}

// SplitLeaf splits a flat leaf. A SplitGroup is rejected with
// UNSUPPORTED_SHAPE.
func SplitLeaf(leaf Leaf, trainSize float64, opts ...SplitOption) (*SplitGroup, error) {
	switch l := leaf.(type) {
	case *Table:
		return TrainTestSplit(l, trainSize, opts...)
	case *SplitGroup:
		return nil, types.NewError(types.ErrUnsupportedShape, "leaf is already split").
			WithSplit(strings.Join(l.Names(), ","))
	default:
		return nil, types.Errorf(types.ErrUnsupportedShape, "unknown leaf type %T", leaf)
	}
}
